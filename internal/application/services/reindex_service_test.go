package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

func activeIndex() *entities.Index {
	return &entities.Index{
		ID:           "idx-old",
		OrgID:        "org-1",
		Type:         entities.IndexTypeCourses,
		PhysicalName: "courses_org-1_1",
		AliasName:    "search_org-1_courses",
		IsActive:     true,
	}
}

func newReindexFixture(poll, ceiling time.Duration) (*MockIndexRepository, *MockSearchBackend, *ReindexService) {
	repo := new(MockIndexRepository)
	backend := new(MockSearchBackend)
	return repo, backend, NewReindexService(repo, backend, poll, ceiling)
}

func TestReindexService_HappyPath(t *testing.T) {
	repo, backend, service := newReindexFixture(time.Millisecond, time.Second)

	repo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(activeIndex(), nil)
	backend.On("CreateIndex", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything).Return(nil)
	backend.On("StartReindex", mock.Anything, "courses_org-1_1", mock.AnythingOfType("string")).
		Return("node:1", nil)
	backend.On("GetTaskStatus", mock.Anything, "node:1").
		Return(&providers.TaskStatus{Completed: false, Total: 10, Created: 5}, nil).Once()
	backend.On("GetTaskStatus", mock.Anything, "node:1").
		Return(&providers.TaskStatus{Completed: true, Total: 10, Created: 10}, nil).Once()
	backend.On("UpdateAliases", mock.Anything, "search_org-1_courses", "courses_org-1_1",
		mock.AnythingOfType("string")).Return(nil)
	backend.On("Count", mock.Anything, mock.AnythingOfType("string")).Return(int64(10), nil)
	repo.On("ReplaceActive", mock.Anything, "idx-old", mock.AnythingOfType("*entities.Index")).Return(nil)
	backend.On("DeleteIndex", mock.Anything, "courses_org-1_1").Return(nil)
	backend.On("ForceMerge", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	backend.On("ClearCache", mock.Anything, "search_org-1_courses").Return(nil)

	result, err := service.Reindex(context.Background(), &ReindexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ReindexStateCompleted, result.State)
	assert.Equal(t, "courses_org-1_1", result.OldIndex)
	assert.NotEqual(t, result.OldIndex, result.NewIndex)
	backend.AssertCalled(t, "DeleteIndex", mock.Anything, "courses_org-1_1")
}

func TestReindexService_CopyFailuresAbortBeforeSwap(t *testing.T) {
	repo, backend, service := newReindexFixture(time.Millisecond, time.Second)

	repo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(activeIndex(), nil)
	backend.On("CreateIndex", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("StartReindex", mock.Anything, mock.Anything, mock.Anything).Return("node:2", nil)
	backend.On("GetTaskStatus", mock.Anything, "node:2").
		Return(&providers.TaskStatus{Completed: true, Failures: []string{"doc-3: version conflict"}}, nil)
	backend.On("DeleteIndex", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	result, err := service.Reindex(context.Background(), &ReindexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	})
	require.Error(t, err)
	assert.Equal(t, ReindexStateCopyFailed, result.State)

	// readers stay on the original index and the registry is untouched
	backend.AssertNotCalled(t, "UpdateAliases", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ReplaceActive", mock.Anything, mock.Anything, mock.Anything)
	// the half-built copy target is removed
	backend.AssertCalled(t, "DeleteIndex", mock.Anything, mock.AnythingOfType("string"))
}

func TestReindexService_ExpiredTaskIsImplicitSuccess(t *testing.T) {
	repo, backend, service := newReindexFixture(time.Millisecond, time.Second)

	repo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(activeIndex(), nil)
	backend.On("CreateIndex", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("StartReindex", mock.Anything, mock.Anything, mock.Anything).Return("node:3", nil)
	backend.On("GetTaskStatus", mock.Anything, "node:3").
		Return(&providers.TaskStatus{NotFound: true}, nil)
	backend.On("UpdateAliases", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("Count", mock.Anything, mock.Anything).Return(int64(7), nil)
	repo.On("ReplaceActive", mock.Anything, "idx-old", mock.Anything).Return(nil)
	backend.On("DeleteIndex", mock.Anything, "courses_org-1_1").Return(nil)
	backend.On("ForceMerge", mock.Anything, mock.Anything).Return(nil)
	backend.On("ClearCache", mock.Anything, mock.Anything).Return(nil)

	result, err := service.Reindex(context.Background(), &ReindexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ReindexStateCompleted, result.State)
}

func TestReindexService_TimeoutLeavesOriginalActive(t *testing.T) {
	repo, backend, service := newReindexFixture(5*time.Millisecond, 25*time.Millisecond)

	repo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(activeIndex(), nil)
	backend.On("CreateIndex", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("StartReindex", mock.Anything, mock.Anything, mock.Anything).Return("node:4", nil)
	backend.On("GetTaskStatus", mock.Anything, "node:4").
		Return(&providers.TaskStatus{Completed: false, Total: 100, Created: 1}, nil)
	backend.On("DeleteIndex", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	result, err := service.Reindex(context.Background(), &ReindexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	})
	require.Error(t, err)
	assert.Equal(t, ReindexStateTimeout, result.State)
	backend.AssertNotCalled(t, "UpdateAliases", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReindexService_CancellationFailsTheCopy(t *testing.T) {
	repo, backend, service := newReindexFixture(10*time.Millisecond, time.Minute)

	repo.On("GetActive", mock.Anything, "org-1", entities.IndexTypeCourses).Return(activeIndex(), nil)
	backend.On("CreateIndex", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	backend.On("StartReindex", mock.Anything, mock.Anything, mock.Anything).Return("node:5", nil)
	backend.On("GetTaskStatus", mock.Anything, "node:5").
		Return(&providers.TaskStatus{Completed: false}, nil).Maybe()
	backend.On("DeleteIndex", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := service.Reindex(ctx, &ReindexRequest{
		IndexType: entities.IndexTypeCourses,
		OrgID:     "org-1",
	})
	require.Error(t, err)
	assert.Equal(t, ReindexStateCopyFailed, result.State)
}

func TestReindexService_InvalidRequestRejected(t *testing.T) {
	_, _, service := newReindexFixture(time.Millisecond, time.Second)
	_, err := service.Reindex(context.Background(), &ReindexRequest{IndexType: "webinars", OrgID: "org-1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
