package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
)

type MockSearchBackend struct {
	mock.Mock
}

func (m *MockSearchBackend) CreateIndex(ctx context.Context, name string, mapping, settings map[string]interface{}) error {
	return m.Called(ctx, name, mapping, settings).Error(0)
}

func (m *MockSearchBackend) DeleteIndex(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockSearchBackend) PutAlias(ctx context.Context, index, alias string) error {
	return m.Called(ctx, index, alias).Error(0)
}

func (m *MockSearchBackend) UpdateAliases(ctx context.Context, alias, removeIndex, addIndex string) error {
	return m.Called(ctx, alias, removeIndex, addIndex).Error(0)
}

func (m *MockSearchBackend) ResolveAlias(ctx context.Context, alias string) (string, error) {
	args := m.Called(ctx, alias)
	return args.String(0), args.Error(1)
}

func (m *MockSearchBackend) Bulk(ctx context.Context, ops []providers.BulkOp) (*providers.BulkResult, error) {
	args := m.Called(ctx, ops)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.BulkResult), args.Error(1)
}

func (m *MockSearchBackend) IndexDoc(ctx context.Context, index, id string, doc map[string]interface{}) error {
	return m.Called(ctx, index, id, doc).Error(0)
}

func (m *MockSearchBackend) UpdateDoc(ctx context.Context, index, id string, doc map[string]interface{}) error {
	return m.Called(ctx, index, id, doc).Error(0)
}

func (m *MockSearchBackend) DeleteDoc(ctx context.Context, index, id string) error {
	return m.Called(ctx, index, id).Error(0)
}

func (m *MockSearchBackend) Count(ctx context.Context, index string) (int64, error) {
	args := m.Called(ctx, index)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSearchBackend) Search(ctx context.Context, indices []string, query map[string]interface{}) (*providers.BackendSearchResult, error) {
	args := m.Called(ctx, indices, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.BackendSearchResult), args.Error(1)
}

func (m *MockSearchBackend) ForceMerge(ctx context.Context, index string) error {
	return m.Called(ctx, index).Error(0)
}

func (m *MockSearchBackend) ClearCache(ctx context.Context, index string) error {
	return m.Called(ctx, index).Error(0)
}

func (m *MockSearchBackend) StartReindex(ctx context.Context, src, dst string) (string, error) {
	args := m.Called(ctx, src, dst)
	return args.String(0), args.Error(1)
}

func (m *MockSearchBackend) GetTaskStatus(ctx context.Context, taskID string) (*providers.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.TaskStatus), args.Error(1)
}

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	args := m.Called(ctx, jobType, payload)
	return args.String(0), args.Error(1)
}

func (m *MockJobQueue) ReportProgress(ctx context.Context, jobID string, percent int) error {
	return m.Called(ctx, jobID, percent).Error(0)
}

func (m *MockJobQueue) Consume(ctx context.Context, jobType string, handler providers.JobHandler) error {
	return m.Called(ctx, jobType, handler).Error(0)
}

type MockCacheProvider struct {
	mock.Mock
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockIndexRepository struct {
	mock.Mock
}

func (m *MockIndexRepository) Create(ctx context.Context, index *entities.Index) error {
	return m.Called(ctx, index).Error(0)
}

func (m *MockIndexRepository) GetByID(ctx context.Context, id string) (*entities.Index, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Index), args.Error(1)
}

func (m *MockIndexRepository) GetActive(ctx context.Context, orgID string, indexType entities.IndexType) (*entities.Index, error) {
	args := m.Called(ctx, orgID, indexType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Index), args.Error(1)
}

func (m *MockIndexRepository) List(ctx context.Context, orgID string) ([]*entities.Index, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Index), args.Error(1)
}

func (m *MockIndexRepository) Update(ctx context.Context, index *entities.Index) error {
	return m.Called(ctx, index).Error(0)
}

func (m *MockIndexRepository) UpdateDocumentCount(ctx context.Context, id string, count int64) error {
	return m.Called(ctx, id, count).Error(0)
}

func (m *MockIndexRepository) RecordSyncSuccess(ctx context.Context, id string, durationMs int64, throughputPerSec float64, documentCount int64, syncedAt time.Time) error {
	return m.Called(ctx, id, durationMs, throughputPerSec, documentCount, syncedAt).Error(0)
}

func (m *MockIndexRepository) RecordSyncFailure(ctx context.Context, id string, lastError string) error {
	return m.Called(ctx, id, lastError).Error(0)
}

func (m *MockIndexRepository) ReplaceActive(ctx context.Context, oldID string, replacement *entities.Index) error {
	return m.Called(ctx, oldID, replacement).Error(0)
}

func (m *MockIndexRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockSearchLogRepository struct {
	mock.Mock
}

func (m *MockSearchLogRepository) Insert(ctx context.Context, log *entities.SearchQueryLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *MockSearchLogRepository) InsertClick(ctx context.Context, click *entities.ResultClick) error {
	return m.Called(ctx, click).Error(0)
}

func (m *MockSearchLogRepository) IncrementClickThrough(ctx context.Context, queryID string) error {
	return m.Called(ctx, queryID).Error(0)
}

func (m *MockSearchLogRepository) ListByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.SearchQueryLog, error) {
	args := m.Called(ctx, orgID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchQueryLog), args.Error(1)
}

func (m *MockSearchLogRepository) ListClicksByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.ResultClick, error) {
	args := m.Called(ctx, orgID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ResultClick), args.Error(1)
}

func (m *MockSearchLogRepository) UpdateIntentOnce(ctx context.Context, id string, intent entities.SearchIntent) error {
	return m.Called(ctx, id, intent).Error(0)
}

func (m *MockSearchLogRepository) ListActiveOrgs(ctx context.Context, day time.Time) ([]string, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSuggestionRepository struct {
	mock.Mock
}

func (m *MockSuggestionRepository) Upsert(ctx context.Context, suggestion *entities.Suggestion) error {
	return m.Called(ctx, suggestion).Error(0)
}

func (m *MockSuggestionRepository) ListPrefix(ctx context.Context, orgID, prefix string, limit int) ([]*entities.Suggestion, error) {
	args := m.Called(ctx, orgID, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Suggestion), args.Error(1)
}

func (m *MockSuggestionRepository) ListTop(ctx context.Context, orgID string, limit int) ([]*entities.Suggestion, error) {
	args := m.Called(ctx, orgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Suggestion), args.Error(1)
}

func (m *MockSuggestionRepository) RecalculateClickThroughRates(ctx context.Context, orgID string) error {
	return m.Called(ctx, orgID).Error(0)
}

type MockPersonalizationRepository struct {
	mock.Mock
}

func (m *MockPersonalizationRepository) Get(ctx context.Context, userID, orgID string) (*entities.PersonalizationProfile, error) {
	args := m.Called(ctx, userID, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PersonalizationProfile), args.Error(1)
}

func (m *MockPersonalizationRepository) Save(ctx context.Context, profile *entities.PersonalizationProfile) error {
	return m.Called(ctx, profile).Error(0)
}

type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) InsertOnce(ctx context.Context, analytics *entities.DailyAnalytics) (bool, error) {
	args := m.Called(ctx, analytics)
	return args.Bool(0), args.Error(1)
}

func (m *MockAnalyticsRepository) GetByOrgAndDate(ctx context.Context, orgID string, date time.Time) (*entities.DailyAnalytics, error) {
	args := m.Called(ctx, orgID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DailyAnalytics), args.Error(1)
}

func (m *MockAnalyticsRepository) ListRange(ctx context.Context, orgID string, from, to time.Time) ([]*entities.DailyAnalytics, error) {
	args := m.Called(ctx, orgID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DailyAnalytics), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) Count(ctx context.Context, orgID string, indexType entities.IndexType) (int64, error) {
	args := m.Called(ctx, orgID, indexType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogRepository) ListPage(ctx context.Context, orgID string, indexType entities.IndexType, offset, limit int) ([]interface{}, error) {
	args := m.Called(ctx, orgID, indexType, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interface{}), args.Error(1)
}

func (m *MockCatalogRepository) GetByIDs(ctx context.Context, orgID string, indexType entities.IndexType, ids []string) ([]interface{}, error) {
	args := m.Called(ctx, orgID, indexType, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interface{}), args.Error(1)
}
