package repositories

import (
	"context"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// AnalyticsRepository persists immutable daily rollups
type AnalyticsRepository interface {
	// InsertOnce writes the rollup unless one already exists for the
	// (org, date) pair; it reports whether a row was written.
	InsertOnce(ctx context.Context, analytics *entities.DailyAnalytics) (bool, error)

	GetByOrgAndDate(ctx context.Context, orgID string, date time.Time) (*entities.DailyAnalytics, error)

	// ListRange returns rollups for [from, to] ordered by date ascending
	ListRange(ctx context.Context, orgID string, from, to time.Time) ([]*entities.DailyAnalytics, error)
}
