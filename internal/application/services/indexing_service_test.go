package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

type indexingFixture struct {
	backend   *MockSearchBackend
	catalog   *MockCatalogRepository
	indexRepo *MockIndexRepository
	queue     *MockJobQueue
	service   *IndexingService
	index     *entities.Index
}

func newIndexingFixture(chunkSize, syncPageSize int) *indexingFixture {
	f := &indexingFixture{
		backend:   new(MockSearchBackend),
		catalog:   new(MockCatalogRepository),
		indexRepo: new(MockIndexRepository),
		queue:     new(MockJobQueue),
	}
	f.index = &entities.Index{
		ID:           "idx-1",
		OrgID:        "org-1",
		Type:         entities.IndexTypeCourses,
		PhysicalName: "courses_org-1_1",
		AliasName:    "search_org-1_courses",
		IsActive:     true,
	}
	registry := NewIndexRegistryService(f.indexRepo, f.backend)
	f.service = NewIndexingService(
		registry,
		NewDocumentTransformer(),
		f.backend,
		f.catalog,
		f.indexRepo,
		f.queue,
		chunkSize,
		syncPageSize,
	)
	return f
}

func courseSources(n int) []interface{} {
	sources := make([]interface{}, n)
	for i := range sources {
		sources[i] = &entities.Course{
			ID:    "course-" + string(rune('a'+i)),
			Title: "Course",
		}
	}
	return sources
}

func TestIndexingService_Bulk_ChunksRequests(t *testing.T) {
	f := newIndexingFixture(2, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)
	f.catalog.On("GetByIDs", mock.Anything, "org-1", entities.IndexTypeCourses,
		[]string{"a", "b", "c", "d", "e"}).Return(courseSources(5), nil)

	var chunkSizes []int
	f.backend.On("Bulk", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			chunkSizes = append(chunkSizes, len(args.Get(1).([]providers.BulkOp)))
		}).
		Return(&providers.BulkResult{Indexed: 2}, nil).Twice()
	f.backend.On("Bulk", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			chunkSizes = append(chunkSizes, len(args.Get(1).([]providers.BulkOp)))
		}).
		Return(&providers.BulkResult{Indexed: 1}, nil).Once()
	f.backend.On("Count", mock.Anything, "courses_org-1_1").Return(int64(5), nil)
	f.indexRepo.On("UpdateDocumentCount", mock.Anything, "idx-1", int64(5)).Return(nil)

	result, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType:   entities.IndexTypeCourses,
		OrgID:       "org-1",
		Operation:   OperationBulk,
		DocumentIDs: []string{"a", "b", "c", "d", "e"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Indexed)
	assert.Equal(t, []int{2, 2, 1}, chunkSizes)
	f.indexRepo.AssertCalled(t, "UpdateDocumentCount", mock.Anything, "idx-1", int64(5))
}

func TestIndexingService_Bulk_PartialFailuresReported(t *testing.T) {
	f := newIndexingFixture(100, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)
	f.catalog.On("GetByIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(courseSources(3), nil)
	f.backend.On("Bulk", mock.Anything, mock.Anything).Return(&providers.BulkResult{
		Indexed: 2,
		Failed:  1,
		Errors:  []providers.BulkItemError{{ID: "course-b", Status: 400, Reason: "mapping conflict"}},
	}, nil)
	f.backend.On("Count", mock.Anything, mock.Anything).Return(int64(2), nil)
	f.indexRepo.On("UpdateDocumentCount", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType:   entities.IndexTypeCourses,
		OrgID:       "org-1",
		Operation:   OperationBulk,
		DocumentIDs: []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "course-b", result.Errors[0].ID)
}

func TestIndexingService_Bulk_AcceptsInlineDocuments(t *testing.T) {
	f := newIndexingFixture(100, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)

	var ops []providers.BulkOp
	f.backend.On("Bulk", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ops = args.Get(1).([]providers.BulkOp)
		}).
		Return(&providers.BulkResult{Indexed: 2}, nil)
	f.backend.On("Count", mock.Anything, mock.Anything).Return(int64(2), nil)
	f.indexRepo.On("UpdateDocumentCount", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	docs := make([]json.RawMessage, 0, 2)
	for _, id := range []string{"course-a", "course-b"} {
		raw, err := json.Marshal(&entities.Course{ID: id, OrgID: "org-1", Title: "Inline Course"})
		require.NoError(t, err)
		docs = append(docs, raw)
	}

	result, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
		Operation: OperationBulk,
		Documents: docs,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
	require.Len(t, ops, 2)
	assert.Equal(t, "course-a", ops[0].ID)
	assert.Equal(t, "course-b", ops[1].ID)
	f.catalog.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexingService_Bulk_RejectsMalformedInlineDocument(t *testing.T) {
	f := newIndexingFixture(100, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)

	_, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
		Operation: OperationBulk,
		Documents: []json.RawMessage{json.RawMessage(`"not an object"`)},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	f.backend.AssertNotCalled(t, "Bulk", mock.Anything, mock.Anything)
}

func TestIndexingService_Delete_ToleratesMissingDocuments(t *testing.T) {
	f := newIndexingFixture(100, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)
	f.backend.On("DeleteDoc", mock.Anything, "courses_org-1_1", "gone").
		Return(apperrors.NewNotFoundError("document gone not found"))
	f.backend.On("DeleteDoc", mock.Anything, "courses_org-1_1", "present").Return(nil)
	f.backend.On("Count", mock.Anything, mock.Anything).Return(int64(9), nil)
	f.indexRepo.On("UpdateDocumentCount", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType:   entities.IndexTypeCourses,
		OrgID:       "org-1",
		Operation:   OperationDelete,
		DocumentIDs: []string{"gone", "present"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 0, result.Failed)
}

func TestIndexingService_InvalidRequestRejected(t *testing.T) {
	f := newIndexingFixture(100, 500)

	_, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType: "webinars", OrgID: "org-1", Operation: OperationIndex, DocumentIDs: []string{"a"},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType: entities.IndexTypeCourses, OrgID: "org-1", Operation: "replace", DocumentIDs: []string{"a"},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType: entities.IndexTypeCourses, OrgID: "org-1", Operation: OperationIndex,
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestIndexingService_FullSync_ReportsMonotonicProgress(t *testing.T) {
	f := newIndexingFixture(100, 2)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)
	f.catalog.On("Count", mock.Anything, "org-1", entities.IndexTypeCourses).Return(int64(4), nil)
	f.catalog.On("ListPage", mock.Anything, "org-1", entities.IndexTypeCourses, 0, 2).
		Return(courseSources(2), nil)
	f.catalog.On("ListPage", mock.Anything, "org-1", entities.IndexTypeCourses, 2, 2).
		Return(courseSources(2), nil)
	f.catalog.On("ListPage", mock.Anything, "org-1", entities.IndexTypeCourses, 4, 2).
		Return([]interface{}{}, nil)
	f.backend.On("Bulk", mock.Anything, mock.Anything).Return(&providers.BulkResult{Indexed: 2}, nil)
	f.backend.On("Count", mock.Anything, "courses_org-1_1").Return(int64(4), nil)

	var reported []int
	f.queue.On("ReportProgress", mock.Anything, "job-7", mock.AnythingOfType("int")).
		Run(func(args mock.Arguments) {
			reported = append(reported, args.Int(2))
		}).Return(nil)
	f.indexRepo.On("RecordSyncSuccess", mock.Anything, "idx-1",
		mock.Anything, mock.Anything, int64(4), mock.Anything).Return(nil)

	result, err := f.service.FullSync(context.Background(), &FullSyncRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	}, "job-7")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Indexed)
	assert.Equal(t, []int{50, 100}, reported)
	f.indexRepo.AssertCalled(t, "RecordSyncSuccess", mock.Anything, "idx-1",
		mock.Anything, mock.Anything, int64(4), mock.Anything)
	f.indexRepo.AssertNotCalled(t, "RecordSyncFailure", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexingService_FullSync_RecordsFailureWithoutTouchingSuccessStats(t *testing.T) {
	f := newIndexingFixture(100, 2)

	f.indexRepo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(f.index, nil)
	f.catalog.On("Count", mock.Anything, "org-1", entities.IndexTypeCourses).Return(int64(4), nil)
	f.catalog.On("ListPage", mock.Anything, "org-1", entities.IndexTypeCourses, 0, 2).
		Return(nil, apperrors.NewUnavailableError("database down", nil))
	f.indexRepo.On("RecordSyncFailure", mock.Anything, "idx-1", mock.AnythingOfType("string")).Return(nil)

	_, err := f.service.FullSync(context.Background(), &FullSyncRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	}, "")
	require.Error(t, err)
	f.indexRepo.AssertCalled(t, "RecordSyncFailure", mock.Anything, "idx-1", mock.AnythingOfType("string"))
	f.indexRepo.AssertNotCalled(t, "RecordSyncSuccess",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexingService_EnsureIndexProvisionsOnFirstUse(t *testing.T) {
	f := newIndexingFixture(100, 500)

	f.indexRepo.On("GetActive", mock.Anything, "org-2", entities.IndexTypeCourses).
		Return(nil, apperrors.NewNotFoundError("index not found"))
	f.backend.On("CreateIndex", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything).Return(nil)
	f.backend.On("PutAlias", mock.Anything, mock.AnythingOfType("string"), "search_org-2_courses").Return(nil)
	f.indexRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Index")).
		Run(func(args mock.Arguments) {
			index := args.Get(1).(*entities.Index)
			index.ID = "idx-new"
			assert.True(t, index.IsActive)
		}).Return(nil)
	f.catalog.On("GetByIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(courseSources(1), nil)
	f.backend.On("Bulk", mock.Anything, mock.Anything).Return(&providers.BulkResult{Indexed: 1}, nil)
	f.backend.On("Count", mock.Anything, mock.Anything).Return(int64(1), nil)
	f.indexRepo.On("UpdateDocumentCount", mock.Anything, "idx-new", int64(1)).Return(nil)

	_, err := f.service.IndexDocuments(context.Background(), &IndexRequest{
		IndexType:   entities.IndexTypeCourses,
		OrgID:       "org-2",
		Operation:   OperationIndex,
		DocumentIDs: []string{"a"},
	})
	require.NoError(t, err)
	f.backend.AssertCalled(t, "CreateIndex", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything)
}
