package repositories

import (
	"context"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// PersonalizationRepository persists per-user personalization profiles
type PersonalizationRepository interface {
	// Get returns the profile for a user, or a NotFound error
	Get(ctx context.Context, userID, orgID string) (*entities.PersonalizationProfile, error)

	// Save upserts the profile keyed by (user, org)
	Save(ctx context.Context, profile *entities.PersonalizationProfile) error
}
