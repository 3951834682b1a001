package services

import (
	"math"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

const (
	trendWindowDays    = 7
	stableThresholdPct = 5.0
)

type trendMetric struct {
	name    string
	extract func(*entities.DailyAnalytics) float64
}

var trendMetrics = []trendMetric{
	{"total_queries", func(a *entities.DailyAnalytics) float64 { return float64(a.TotalQueries) }},
	{"average_ctr", func(a *entities.DailyAnalytics) float64 { return a.AverageCTR }},
	{"average_execution_time", func(a *entities.DailyAnalytics) float64 { return a.AverageExecutionTime }},
	{"unique_users", func(a *entities.DailyAnalytics) float64 { return float64(a.UniqueUsers) }},
}

// DetectTrends compares the mean of the most recent seven rollups against
// the seven before them for each tracked metric. Fewer than fourteen rollups
// yields no trends rather than a misleading partial comparison.
func DetectTrends(rollups []*entities.DailyAnalytics) []entities.Trend {
	if len(rollups) < 2*trendWindowDays {
		return nil
	}

	recent := rollups[len(rollups)-trendWindowDays:]
	prior := rollups[len(rollups)-2*trendWindowDays : len(rollups)-trendWindowDays]

	trends := make([]entities.Trend, 0, len(trendMetrics))
	for _, metric := range trendMetrics {
		current := windowMean(recent, metric.extract)
		previous := windowMean(prior, metric.extract)
		trends = append(trends, buildTrend(metric.name, current, previous))
	}
	return trends
}

func buildTrend(name string, current, previous float64) entities.Trend {
	trend := entities.Trend{
		Metric:   name,
		Current:  current,
		Previous: previous,
	}

	switch {
	case previous == 0 && current == 0:
		trend.ChangePercent = 0
	case previous == 0:
		trend.ChangePercent = 100
	default:
		trend.ChangePercent = (current - previous) / previous * 100
	}

	switch {
	case math.Abs(trend.ChangePercent) < stableThresholdPct:
		trend.Direction = entities.TrendStable
	case trend.ChangePercent > 0:
		trend.Direction = entities.TrendUp
	default:
		trend.Direction = entities.TrendDown
	}
	return trend
}

func windowMean(rollups []*entities.DailyAnalytics, extract func(*entities.DailyAnalytics) float64) float64 {
	if len(rollups) == 0 {
		return 0
	}
	var sum float64
	for _, rollup := range rollups {
		sum += extract(rollup)
	}
	return sum / float64(len(rollups))
}
