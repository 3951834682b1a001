package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

func setupMockDB(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return postgres.NewClientFromDB(mockDB), mock
}

func indexRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "org_id", "index_type", "physical_name", "alias_name",
		"mapping", "config", "is_active", "is_realtime_sync", "document_count",
		"last_synced_at", "successful_syncs", "failed_syncs", "last_error",
		"last_duration_ms", "throughput_per_sec", "created_at", "updated_at",
	})
}

func TestIndexAdapter_GetActive(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewIndexAdapter(client)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM "search_indices"`).
		WithArgs("org-1", "courses", true).
		WillReturnRows(indexRows().AddRow(
			"idx-1", "org-1", "courses", "courses_org-1_1", "search_org-1_courses",
			[]byte(`{}`), []byte(`{}`), true, true, int64(42),
			now, 3, 1, "boom", int64(1200), 35.5, now, now,
		))

	index, err := adapter.GetActive(context.Background(), "org-1", entities.IndexTypeCourses)
	require.NoError(t, err)
	assert.Equal(t, "idx-1", index.ID)
	assert.Equal(t, entities.IndexTypeCourses, index.Type)
	assert.Equal(t, int64(42), index.DocumentCount)
	assert.Equal(t, 3, index.SyncStats.SuccessfulSyncs)
	assert.Equal(t, "boom", index.SyncStats.LastError)
	assert.True(t, index.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexAdapter_GetActive_NotFound(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewIndexAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "search_indices"`).
		WillReturnRows(indexRows())

	_, err := adapter.GetActive(context.Background(), "org-1", entities.IndexTypeCourses)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestIndexAdapter_Create_AssignsID(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewIndexAdapter(client)

	mock.ExpectExec(`INSERT INTO "search_indices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	index := &entities.Index{
		OrgID:        "org-1",
		Type:         entities.IndexTypeCourses,
		PhysicalName: "courses_org-1_1",
		AliasName:    "search_org-1_courses",
		IsActive:     true,
	}
	require.NoError(t, adapter.Create(context.Background(), index))
	assert.NotEmpty(t, index.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexAdapter_RecordSyncFailure_OnlyTouchesFailureColumns(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewIndexAdapter(client)

	mock.ExpectExec(`SET failed_syncs = failed_syncs \+ 1`).
		WithArgs("backend unreachable", sqlmock.AnyArg(), "idx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.RecordSyncFailure(context.Background(), "idx-1", "backend unreachable")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexAdapter_ReplaceActive_SingleTransaction(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewIndexAdapter(client)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "search_indices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "search_indices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	replacement := &entities.Index{
		OrgID:        "org-1",
		Type:         entities.IndexTypeCourses,
		PhysicalName: "courses_org-1_2",
		AliasName:    "search_org-1_courses",
	}
	err := adapter.ReplaceActive(context.Background(), "idx-old", replacement)
	require.NoError(t, err)
	assert.True(t, replacement.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
