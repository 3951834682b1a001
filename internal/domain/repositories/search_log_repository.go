package repositories

import (
	"context"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// SearchLogRepository persists the append-only query log and result clicks
type SearchLogRepository interface {
	Insert(ctx context.Context, log *entities.SearchQueryLog) error
	InsertClick(ctx context.Context, click *entities.ResultClick) error
	IncrementClickThrough(ctx context.Context, queryID string) error

	// ListByOrgAndDay returns all logs executed on the given UTC day
	ListByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.SearchQueryLog, error)
	ListClicksByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.ResultClick, error)

	// UpdateIntentOnce sets the intent only when it has not been set before
	UpdateIntentOnce(ctx context.Context, id string, intent entities.SearchIntent) error

	// ListActiveOrgs returns orgs that logged at least one query that day
	ListActiveOrgs(ctx context.Context, day time.Time) ([]string, error)
}
