package repositories

import (
	"context"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

// IndexRepository persists index registry metadata.
// The indexing pipeline and the reindex orchestrator are the only writers
// of sync and active fields.
type IndexRepository interface {
	Create(ctx context.Context, index *entities.Index) error
	GetByID(ctx context.Context, id string) (*entities.Index, error)

	// GetActive returns the single active index for an org and type,
	// or a NotFound error.
	GetActive(ctx context.Context, orgID string, indexType entities.IndexType) (*entities.Index, error)

	List(ctx context.Context, orgID string) ([]*entities.Index, error)
	Update(ctx context.Context, index *entities.Index) error

	// UpdateDocumentCount stores the backend's authoritative document count
	UpdateDocumentCount(ctx context.Context, id string, count int64) error

	// RecordSyncSuccess increments successful_syncs and records duration,
	// throughput, count, and sync time in one statement.
	RecordSyncSuccess(ctx context.Context, id string, durationMs int64, throughputPerSec float64, documentCount int64, syncedAt time.Time) error

	// RecordSyncFailure increments failed_syncs and records the error
	// without touching any other sync stats.
	RecordSyncFailure(ctx context.Context, id string, lastError string) error

	// ReplaceActive inserts the replacement index and deactivates the old
	// one in a single transaction, preserving the one-active invariant.
	ReplaceActive(ctx context.Context, oldID string, replacement *entities.Index) error

	Delete(ctx context.Context, id string) error
}
