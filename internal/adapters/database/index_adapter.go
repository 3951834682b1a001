package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

const indexTable = "search_indices"

var indexColumns = []interface{}{
	"id", "org_id", "index_type", "physical_name", "alias_name",
	"mapping", "config", "is_active", "is_realtime_sync", "document_count",
	"last_synced_at", "successful_syncs", "failed_syncs", "last_error",
	"last_duration_ms", "throughput_per_sec", "created_at", "updated_at",
}

// IndexAdapter implements IndexRepository over PostgreSQL
type IndexAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewIndexAdapter creates a new index registry adapter
func NewIndexAdapter(client *postgres.Client) repositories.IndexRepository {
	return &IndexAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB().DB),
	}
}

// Create creates a new index registry row
func (a *IndexAdapter) Create(ctx context.Context, index *entities.Index) error {
	if index.ID == "" {
		index.ID = uuid.New().String()
	}
	now := time.Now()
	if index.CreatedAt.IsZero() {
		index.CreatedAt = now
	}
	index.UpdatedAt = now

	query, args, err := a.db.Insert(indexTable).Rows(indexRecord(index)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build index insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create index", err)
	}
	return nil
}

// GetByID retrieves an index by ID
func (a *IndexAdapter) GetByID(ctx context.Context, id string) (*entities.Index, error) {
	return a.getWhere(ctx, goqu.Ex{"id": id})
}

// GetActive retrieves the single active index for an org and type
func (a *IndexAdapter) GetActive(ctx context.Context, orgID string, indexType entities.IndexType) (*entities.Index, error) {
	return a.getWhere(ctx, goqu.Ex{"org_id": orgID, "index_type": string(indexType), "is_active": true})
}

// List retrieves all indices for an org
func (a *IndexAdapter) List(ctx context.Context, orgID string) ([]*entities.Index, error) {
	query, args, err := a.db.Select(indexColumns...).From(indexTable).
		Where(goqu.Ex{"org_id": orgID}).
		Order(goqu.I("index_type").Asc(), goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build index list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list indices", err)
	}
	defer rows.Close()

	var indices []*entities.Index
	for rows.Next() {
		index, err := scanIndex(rows)
		if err != nil {
			return nil, err
		}
		indices = append(indices, index)
	}
	return indices, rows.Err()
}

// Update persists mutable index metadata
func (a *IndexAdapter) Update(ctx context.Context, index *entities.Index) error {
	index.UpdatedAt = time.Now()

	record := indexRecord(index)
	delete(record, "id")
	delete(record, "created_at")

	query, args, err := a.db.Update(indexTable).Set(record).
		Where(goqu.Ex{"id": index.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build index update", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update index", err)
	}
	return nil
}

// UpdateDocumentCount stores the backend's authoritative document count
func (a *IndexAdapter) UpdateDocumentCount(ctx context.Context, id string, count int64) error {
	query, args, err := a.db.Update(indexTable).Set(goqu.Record{
		"document_count": count,
		"updated_at":     time.Now(),
	}).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build document count update", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update document count", err)
	}
	return nil
}

// RecordSyncSuccess increments successful_syncs and records run figures
func (a *IndexAdapter) RecordSyncSuccess(ctx context.Context, id string, durationMs int64, throughputPerSec float64, documentCount int64, syncedAt time.Time) error {
	query := `
		UPDATE search_indices
		SET successful_syncs = successful_syncs + 1,
		    last_error = '',
		    last_duration_ms = $1,
		    throughput_per_sec = $2,
		    document_count = $3,
		    last_synced_at = $4,
		    updated_at = $4
		WHERE id = $5
	`
	if _, err := a.client.DB().ExecContext(ctx, query, durationMs, throughputPerSec, documentCount, syncedAt, id); err != nil {
		return apperrors.NewInternalError("failed to record sync success", err)
	}
	return nil
}

// RecordSyncFailure increments failed_syncs without touching other stats
func (a *IndexAdapter) RecordSyncFailure(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE search_indices
		SET failed_syncs = failed_syncs + 1,
		    last_error = $1,
		    updated_at = $2
		WHERE id = $3
	`
	if _, err := a.client.DB().ExecContext(ctx, query, lastError, time.Now(), id); err != nil {
		return apperrors.NewInternalError("failed to record sync failure", err)
	}
	return nil
}

// ReplaceActive inserts the replacement row and deactivates the old one in
// a single transaction
func (a *IndexAdapter) ReplaceActive(ctx context.Context, oldID string, replacement *entities.Index) error {
	if replacement.ID == "" {
		replacement.ID = uuid.New().String()
	}
	now := time.Now()
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = now
	}
	replacement.UpdatedAt = now
	replacement.IsActive = true

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin replace transaction", err)
	}
	defer tx.Rollback()

	deactivate, args, err := a.db.Update(indexTable).Set(goqu.Record{
		"is_active":  false,
		"updated_at": now,
	}).Where(goqu.Ex{"id": oldID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build deactivate statement", err)
	}
	if _, err := tx.ExecContext(ctx, deactivate, args...); err != nil {
		return apperrors.NewInternalError("failed to deactivate old index", err)
	}

	insert, args, err := a.db.Insert(indexTable).Rows(indexRecord(replacement)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build replacement insert", err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return apperrors.NewInternalError("failed to insert replacement index", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit replace transaction", err)
	}
	return nil
}

// Delete removes an index registry row
func (a *IndexAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(indexTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build index delete", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to delete index", err)
	}
	return nil
}

func (a *IndexAdapter) getWhere(ctx context.Context, where goqu.Ex) (*entities.Index, error) {
	query, args, err := a.db.Select(indexColumns...).From(indexTable).
		Where(where).Limit(1).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build index query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query index", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, apperrors.NewNotFoundError("index not found")
	}
	return scanIndex(rows)
}

func indexRecord(index *entities.Index) goqu.Record {
	return goqu.Record{
		"id":                 index.ID,
		"org_id":             index.OrgID,
		"index_type":         string(index.Type),
		"physical_name":      index.PhysicalName,
		"alias_name":         index.AliasName,
		"mapping":            []byte(index.Mapping),
		"config":             []byte(index.Config),
		"is_active":          index.IsActive,
		"is_realtime_sync":   index.IsRealtimeSync,
		"document_count":     index.DocumentCount,
		"last_synced_at":     index.LastSyncedAt,
		"successful_syncs":   index.SyncStats.SuccessfulSyncs,
		"failed_syncs":       index.SyncStats.FailedSyncs,
		"last_error":         index.SyncStats.LastError,
		"last_duration_ms":   index.SyncStats.LastDurationMs,
		"throughput_per_sec": index.SyncStats.ThroughputPerSec,
		"created_at":         index.CreatedAt,
		"updated_at":         index.UpdatedAt,
	}
}

func scanIndex(rows *sql.Rows) (*entities.Index, error) {
	index := &entities.Index{}
	var indexType string
	var mapping, config []byte
	var lastSyncedAt sql.NullTime
	var lastError sql.NullString

	err := rows.Scan(
		&index.ID,
		&index.OrgID,
		&indexType,
		&index.PhysicalName,
		&index.AliasName,
		&mapping,
		&config,
		&index.IsActive,
		&index.IsRealtimeSync,
		&index.DocumentCount,
		&lastSyncedAt,
		&index.SyncStats.SuccessfulSyncs,
		&index.SyncStats.FailedSyncs,
		&lastError,
		&index.SyncStats.LastDurationMs,
		&index.SyncStats.ThroughputPerSec,
		&index.CreatedAt,
		&index.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan index", err)
	}

	index.Type = entities.IndexType(indexType)
	index.Mapping = mapping
	index.Config = config
	if lastSyncedAt.Valid {
		index.LastSyncedAt = &lastSyncedAt.Time
	}
	index.SyncStats.LastError = lastError.String
	return index, nil
}
