package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	"github.com/learnlane/coursesearch/pkg/config"
)

const topQueryLimit = 10

// AnalyticsJobPayload drives one analytics run. An empty OrgID means all
// orgs active on that date.
type AnalyticsJobPayload struct {
	OrgID string `json:"org_id,omitempty"`
	Date  string `json:"date"`
}

// AnalyticsService computes the immutable nightly rollups, backfills query
// intents, and derives trends and insights from stored rollups
type AnalyticsService struct {
	logs        repositories.SearchLogRepository
	analytics   repositories.AnalyticsRepository
	suggestions *SuggestionService
	cfg         config.AnalyticsConfig
}

// NewAnalyticsService creates a new analytics aggregator
func NewAnalyticsService(
	logs repositories.SearchLogRepository,
	analytics repositories.AnalyticsRepository,
	suggestions *SuggestionService,
	cfg config.AnalyticsConfig,
) *AnalyticsService {
	return &AnalyticsService{
		logs:        logs,
		analytics:   analytics,
		suggestions: suggestions,
		cfg:         cfg,
	}
}

// RunNightly aggregates every org that logged queries on the given day.
// Per-org failures are logged and skipped so one org cannot block the rest.
func (s *AnalyticsService) RunNightly(ctx context.Context, day time.Time) error {
	logger := observability.LoggerFromContext(ctx)

	orgs, err := s.logs.ListActiveOrgs(ctx, day)
	if err != nil {
		return err
	}

	for _, orgID := range orgs {
		if err := s.AggregateOrg(ctx, orgID, day); err != nil {
			logger.Error().Err(err).Str("org_id", orgID).Msg("Nightly aggregation failed for org")
			continue
		}
		if err := s.suggestions.RecalculateForOrg(ctx, orgID); err != nil {
			logger.Warn().Err(err).Str("org_id", orgID).Msg("Suggestion CTR refresh failed")
		}
	}

	logger.Info().Int("orgs", len(orgs)).Time("day", day).Msg("Nightly analytics run finished")
	return nil
}

// AggregateOrg computes and stores the rollup for one org and day. The write
// is insert-once: an existing rollup for the (org, date) pair is left alone.
func (s *AnalyticsService) AggregateOrg(ctx context.Context, orgID string, day time.Time) error {
	analytics, err := s.computeDay(ctx, orgID, day)
	if err != nil {
		return err
	}

	written, err := s.analytics.InsertOnce(ctx, analytics)
	if err != nil {
		return err
	}
	if !written {
		observability.LoggerFromContext(ctx).Debug().
			Str("org_id", orgID).Time("day", day).Msg("Rollup already exists, skipping")
	}
	return nil
}

// HandleAnalyticsJob consumes search.analytics jobs
func (s *AnalyticsService) HandleAnalyticsJob(ctx context.Context, job *providers.Job) error {
	var payload AnalyticsJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Msg("Dropping malformed analytics job")
		return nil
	}

	day, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Str("date", payload.Date).Msg("Dropping analytics job with invalid date")
		return nil
	}

	if payload.OrgID == "" {
		return s.RunNightly(ctx, day)
	}
	return s.AggregateOrg(ctx, payload.OrgID, day)
}

// Insights evaluates the stored rollup for a day against the configured
// thresholds
func (s *AnalyticsService) Insights(ctx context.Context, orgID string, day time.Time) ([]entities.Insight, error) {
	analytics, err := s.analytics.GetByOrgAndDate(ctx, orgID, day)
	if err != nil {
		return nil, err
	}
	return s.deriveInsights(analytics), nil
}

// Trends compares the last seven days of rollups against the prior seven
func (s *AnalyticsService) Trends(ctx context.Context, orgID string, until time.Time) ([]entities.Trend, error) {
	from := until.AddDate(0, 0, -13)
	rollups, err := s.analytics.ListRange(ctx, orgID, from, until)
	if err != nil {
		return nil, err
	}
	return DetectTrends(rollups), nil
}

func (s *AnalyticsService) computeDay(ctx context.Context, orgID string, day time.Time) (*entities.DailyAnalytics, error) {
	logger := observability.LoggerFromContext(ctx)

	logs, err := s.logs.ListByOrgAndDay(ctx, orgID, day)
	if err != nil {
		return nil, err
	}
	clicks, err := s.logs.ListClicksByOrgAndDay(ctx, orgID, day)
	if err != nil {
		return nil, err
	}

	analytics := &entities.DailyAnalytics{
		OrgID:        orgID,
		Date:         day,
		TotalQueries: int64(len(logs)),
		TotalClicks:  int64(len(clicks)),
	}
	if len(logs) == 0 {
		return analytics, nil
	}

	users := map[string]struct{}{}
	queryCounts := map[string]int64{}
	intentCounts := map[entities.SearchIntent]int64{}
	var totalExecMs, withResults, degraded int64

	for _, log := range logs {
		if log.UserID != nil && *log.UserID != "" {
			users[*log.UserID] = struct{}{}
		}
		if log.HasResults {
			withResults++
		}
		if !log.HasResults && log.ExecutionTimeMs == 0 {
			// degraded searches are logged with a zero execution time
			degraded++
		}
		totalExecMs += log.ExecutionTimeMs
		if log.NormalizedQuery != "" {
			queryCounts[log.NormalizedQuery]++
		}

		intent := log.SearchIntent
		if intent == entities.IntentUnknown {
			intent = ClassifyIntent(log.QueryText)
			if err := s.logs.UpdateIntentOnce(ctx, log.ID, intent); err != nil {
				logger.Warn().Err(err).Str("log_id", log.ID).Msg("Intent backfill failed")
				intent = entities.IntentUnknown
			}
		}
		intentCounts[intent]++
	}

	total := float64(len(logs))
	analytics.UniqueUsers = int64(len(users))
	analytics.QueriesWithResults = withResults
	analytics.AverageCTR = float64(len(clicks)) / total
	analytics.AverageExecutionTime = float64(totalExecMs) / total
	analytics.TopQueries = topQueries(queryCounts, topQueryLimit)
	analytics.IntentDistribution = entities.IntentDistribution{
		Learning: float64(intentCounts[entities.IntentLearning]) / total * 100,
		Research: float64(intentCounts[entities.IntentResearch]) / total * 100,
		Specific: float64(intentCounts[entities.IntentSpecific]) / total * 100,
		Browsing: float64(intentCounts[entities.IntentBrowsing]) / total * 100,
		Unknown:  float64(intentCounts[entities.IntentUnknown]) / total * 100,
	}
	// coarse percentile estimates; true percentiles would need the raw
	// latency distribution kept around
	analytics.Performance = entities.PerformanceMetrics{
		P95LatencyMs: analytics.AverageExecutionTime * 1.5,
		P99LatencyMs: analytics.AverageExecutionTime * 2,
		ErrorRate:    float64(degraded) / total,
	}
	return analytics, nil
}

func (s *AnalyticsService) deriveInsights(a *entities.DailyAnalytics) []entities.Insight {
	var insights []entities.Insight
	if a.TotalQueries == 0 {
		return insights
	}

	if a.AverageCTR < s.cfg.MinCTR {
		insights = append(insights, entities.Insight{
			Severity: entities.SeverityRecommendation,
			Code:     "low_ctr",
			Message:  "Click-through rate is below target; review result relevance and titles",
			Value:    a.AverageCTR,
		})
	}

	zeroRatio := 1 - float64(a.QueriesWithResults)/float64(a.TotalQueries)
	if zeroRatio > s.cfg.MaxZeroRatio {
		insights = append(insights, entities.Insight{
			Severity: entities.SeverityRecommendation,
			Code:     "high_zero_results",
			Message:  "Too many queries return no results; consider synonym or content coverage work",
			Value:    zeroRatio,
		})
	}

	if a.AverageExecutionTime > s.cfg.SlowQueryMs {
		insights = append(insights, entities.Insight{
			Severity: entities.SeverityRecommendation,
			Code:     "slow_queries",
			Message:  "Average query latency is above the slow-query threshold",
			Value:    a.AverageExecutionTime,
		})
	}
	if a.AverageExecutionTime > s.cfg.AlertLatencyMs {
		insights = append(insights, entities.Insight{
			Severity: entities.SeverityAlert,
			Code:     "high_latency",
			Message:  "Average query latency breached the alert threshold",
			Value:    a.AverageExecutionTime,
		})
	}
	if a.Performance.ErrorRate > s.cfg.AlertErrorRate {
		insights = append(insights, entities.Insight{
			Severity: entities.SeverityAlert,
			Code:     "high_error_rate",
			Message:  "Search error rate breached the alert threshold",
			Value:    a.Performance.ErrorRate,
		})
	}
	return insights
}

func topQueries(counts map[string]int64, limit int) []entities.QueryCount {
	top := make([]entities.QueryCount, 0, len(counts))
	for query, count := range counts {
		top = append(top, entities.QueryCount{Query: query, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Query < top[j].Query
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
