package repositories

import (
	"context"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// SuggestionRepository persists autocomplete suggestion candidates
type SuggestionRepository interface {
	// Upsert inserts the suggestion or, on (org, text) conflict, bumps its
	// popularity and refreshes the display text.
	Upsert(ctx context.Context, suggestion *entities.Suggestion) error

	ListPrefix(ctx context.Context, orgID, prefix string, limit int) ([]*entities.Suggestion, error)
	ListTop(ctx context.Context, orgID string, limit int) ([]*entities.Suggestion, error)

	// RecalculateClickThroughRates refreshes every suggestion's CTR from the
	// query log and click tables, clamped to [0, 1].
	RecalculateClickThroughRates(ctx context.Context, orgID string) error
}
