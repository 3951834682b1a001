package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/pkg/config"
)

func analyticsConfig() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		MinCTR:         0.3,
		MaxZeroRatio:   0.2,
		SlowQueryMs:    500,
		AlertLatencyMs: 1000,
		AlertErrorRate: 0.05,
	}
}

type analyticsFixture struct {
	logs      *MockSearchLogRepository
	analytics *MockAnalyticsRepository
	suggRepo  *MockSuggestionRepository
	service   *AnalyticsService
}

func newAnalyticsFixture() *analyticsFixture {
	f := &analyticsFixture{
		logs:      new(MockSearchLogRepository),
		analytics: new(MockAnalyticsRepository),
		suggRepo:  new(MockSuggestionRepository),
	}
	cache := new(MockCacheProvider)
	f.service = NewAnalyticsService(
		f.logs, f.analytics, NewSuggestionService(f.suggRepo, cache), analyticsConfig())
	return f
}

func strPtr(s string) *string { return &s }

func TestAnalyticsService_AggregateOrg(t *testing.T) {
	f := newAnalyticsFixture()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	f.logs.On("ListByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.SearchQueryLog{
		{ID: "l-1", UserID: strPtr("u-1"), QueryText: "how to learn go", NormalizedQuery: "how to learn go",
			ResultsCount: 12, HasResults: true, ExecutionTimeMs: 100},
		{ID: "l-2", UserID: strPtr("u-1"), QueryText: "postgres vs mysql", NormalizedQuery: "postgres vs mysql",
			ResultsCount: 4, HasResults: true, ExecutionTimeMs: 200},
		{ID: "l-3", UserID: strPtr("u-2"), QueryText: "zzz", NormalizedQuery: "zzz",
			ResultsCount: 0, HasResults: false, ExecutionTimeMs: 60},
		{ID: "l-4", QueryText: "how to learn go", NormalizedQuery: "how to learn go",
			ResultsCount: 12, HasResults: true, ExecutionTimeMs: 40,
			SearchIntent: entities.IntentLearning},
	}, nil)
	f.logs.On("ListClicksByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.ResultClick{
		{ID: "c-1", QueryID: "l-1"},
		{ID: "c-2", QueryID: "l-2"},
	}, nil)
	// only the three unclassified rows get a backfill write
	f.logs.On("UpdateIntentOnce", mock.Anything, "l-1", entities.IntentLearning).Return(nil).Once()
	f.logs.On("UpdateIntentOnce", mock.Anything, "l-2", entities.IntentResearch).Return(nil).Once()
	f.logs.On("UpdateIntentOnce", mock.Anything, "l-3", entities.IntentBrowsing).Return(nil).Once()

	var stored *entities.DailyAnalytics
	f.analytics.On("InsertOnce", mock.Anything, mock.AnythingOfType("*entities.DailyAnalytics")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*entities.DailyAnalytics)
		}).Return(true, nil)

	require.NoError(t, f.service.AggregateOrg(context.Background(), "org-1", day))
	require.NotNil(t, stored)

	assert.Equal(t, int64(4), stored.TotalQueries)
	assert.Equal(t, int64(2), stored.UniqueUsers)
	assert.Equal(t, int64(3), stored.QueriesWithResults)
	assert.Equal(t, int64(2), stored.TotalClicks)
	assert.InDelta(t, 0.5, stored.AverageCTR, 1e-9)
	assert.InDelta(t, 100, stored.AverageExecutionTime, 1e-9)
	assert.InDelta(t, 150, stored.Performance.P95LatencyMs, 1e-9)
	assert.InDelta(t, 200, stored.Performance.P99LatencyMs, 1e-9)

	assert.InDelta(t, 50, stored.IntentDistribution.Learning, 1e-9)
	assert.InDelta(t, 25, stored.IntentDistribution.Research, 1e-9)
	assert.InDelta(t, 25, stored.IntentDistribution.Browsing, 1e-9)
	assert.InDelta(t, 0, stored.IntentDistribution.Unknown, 1e-9)

	require.NotEmpty(t, stored.TopQueries)
	assert.Equal(t, "how to learn go", stored.TopQueries[0].Query)
	assert.Equal(t, int64(2), stored.TopQueries[0].Count)
	f.logs.AssertExpectations(t)
}

func TestAnalyticsService_AggregateOrg_EmptyDay(t *testing.T) {
	f := newAnalyticsFixture()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	f.logs.On("ListByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.SearchQueryLog{}, nil)
	f.logs.On("ListClicksByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.ResultClick{}, nil)

	var stored *entities.DailyAnalytics
	f.analytics.On("InsertOnce", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*entities.DailyAnalytics)
		}).Return(true, nil)

	require.NoError(t, f.service.AggregateOrg(context.Background(), "org-1", day))
	require.NotNil(t, stored)
	assert.Equal(t, int64(0), stored.TotalQueries)
	assert.Zero(t, stored.AverageCTR)
	assert.Zero(t, stored.IntentDistribution.Learning)
	assert.Zero(t, stored.Performance.P95LatencyMs)
}

func TestAnalyticsService_AggregateOrg_InsertOnceSkipsExisting(t *testing.T) {
	f := newAnalyticsFixture()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	f.logs.On("ListByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.SearchQueryLog{}, nil)
	f.logs.On("ListClicksByOrgAndDay", mock.Anything, "org-1", day).Return([]*entities.ResultClick{}, nil)
	f.analytics.On("InsertOnce", mock.Anything, mock.Anything).Return(false, nil)

	assert.NoError(t, f.service.AggregateOrg(context.Background(), "org-1", day))
}

func TestAnalyticsService_RunNightly_OneOrgFailureDoesNotBlockOthers(t *testing.T) {
	f := newAnalyticsFixture()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	f.logs.On("ListActiveOrgs", mock.Anything, day).Return([]string{"org-bad", "org-good"}, nil)
	f.logs.On("ListByOrgAndDay", mock.Anything, "org-bad", day).
		Return(nil, assertableError("database down"))
	f.logs.On("ListByOrgAndDay", mock.Anything, "org-good", day).
		Return([]*entities.SearchQueryLog{}, nil)
	f.logs.On("ListClicksByOrgAndDay", mock.Anything, "org-good", day).
		Return([]*entities.ResultClick{}, nil)
	f.analytics.On("InsertOnce", mock.Anything, mock.Anything).Return(true, nil)
	f.suggRepo.On("RecalculateClickThroughRates", mock.Anything, "org-good").Return(nil)

	require.NoError(t, f.service.RunNightly(context.Background(), day))
	f.analytics.AssertNumberOfCalls(t, "InsertOnce", 1)
	f.suggRepo.AssertCalled(t, "RecalculateClickThroughRates", mock.Anything, "org-good")
}

func TestAnalyticsService_Insights(t *testing.T) {
	f := newAnalyticsFixture()
	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	f.analytics.On("GetByOrgAndDate", mock.Anything, "org-1", day).Return(&entities.DailyAnalytics{
		TotalQueries:         100,
		QueriesWithResults:   70,
		AverageCTR:           0.1,
		AverageExecutionTime: 1200,
		Performance:          entities.PerformanceMetrics{ErrorRate: 0.08},
	}, nil)

	insights, err := f.service.Insights(context.Background(), "org-1", day)
	require.NoError(t, err)

	codes := map[string]entities.InsightSeverity{}
	for _, insight := range insights {
		codes[insight.Code] = insight.Severity
	}
	assert.Equal(t, entities.SeverityRecommendation, codes["low_ctr"])
	assert.Equal(t, entities.SeverityRecommendation, codes["high_zero_results"])
	assert.Equal(t, entities.SeverityRecommendation, codes["slow_queries"])
	assert.Equal(t, entities.SeverityAlert, codes["high_latency"])
	assert.Equal(t, entities.SeverityAlert, codes["high_error_rate"])
}

func TestDetectTrends(t *testing.T) {
	rollups := make([]*entities.DailyAnalytics, 0, 14)
	for i := 0; i < 7; i++ {
		rollups = append(rollups, &entities.DailyAnalytics{TotalQueries: 100, AverageCTR: 0.4, AverageExecutionTime: 100})
	}
	for i := 0; i < 7; i++ {
		rollups = append(rollups, &entities.DailyAnalytics{TotalQueries: 150, AverageCTR: 0.4, AverageExecutionTime: 60})
	}

	trends := DetectTrends(rollups)
	require.NotEmpty(t, trends)

	byMetric := map[string]entities.Trend{}
	for _, trend := range trends {
		byMetric[trend.Metric] = trend
	}

	queries := byMetric["total_queries"]
	assert.Equal(t, entities.TrendUp, queries.Direction)
	assert.InDelta(t, 50, queries.ChangePercent, 1e-9)

	assert.Equal(t, entities.TrendStable, byMetric["average_ctr"].Direction)
	assert.Equal(t, entities.TrendDown, byMetric["average_execution_time"].Direction)
}

func TestDetectTrends_RequiresTwoFullWindows(t *testing.T) {
	rollups := []*entities.DailyAnalytics{{TotalQueries: 10}, {TotalQueries: 20}}
	assert.Nil(t, DetectTrends(rollups))
}

type assertableError string

func (e assertableError) Error() string { return string(e) }
