package repositories

import (
	"context"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// CatalogRepository reads the LMS source-of-truth entities that get indexed.
// Pages and lookups return the concrete entity type for the index type
// (*entities.Course, *entities.ContentItem, *entities.LearnerProfile).
type CatalogRepository interface {
	Count(ctx context.Context, orgID string, indexType entities.IndexType) (int64, error)
	ListPage(ctx context.Context, orgID string, indexType entities.IndexType, offset, limit int) ([]interface{}, error)
	GetByIDs(ctx context.Context, orgID string, indexType entities.IndexType, ids []string) ([]interface{}, error)
}
