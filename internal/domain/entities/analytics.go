package entities

import (
	"time"
)

// QueryCount pairs a normalized query with its frequency
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// IntentDistribution holds the share of each intent bucket as a percentage
// of total queries. All buckets are zero when no queries were logged.
type IntentDistribution struct {
	Learning float64 `json:"learning"`
	Research float64 `json:"research"`
	Specific float64 `json:"specific"`
	Browsing float64 `json:"browsing"`
	Unknown  float64 `json:"unknown"`
}

// PerformanceMetrics carries latency and error figures for a day.
// P95/P99 are coarse estimates derived from the mean, not true percentiles.
type PerformanceMetrics struct {
	P95LatencyMs float64 `json:"p95_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
	ErrorRate    float64 `json:"error_rate"`
}

// DailyAnalytics is the immutable per-org nightly rollup. Written once per
// (OrgID, Date) by the analytics job and never updated afterward.
type DailyAnalytics struct {
	ID                   string             `json:"id" db:"id"`
	OrgID                string             `json:"org_id" db:"org_id"`
	Date                 time.Time          `json:"date" db:"date"`
	TotalQueries         int64              `json:"total_queries" db:"total_queries"`
	UniqueUsers          int64              `json:"unique_users" db:"unique_users"`
	QueriesWithResults   int64              `json:"queries_with_results" db:"queries_with_results"`
	TotalClicks          int64              `json:"total_clicks" db:"total_clicks"`
	AverageCTR           float64            `json:"average_ctr" db:"average_ctr"`
	AverageExecutionTime float64            `json:"average_execution_time" db:"average_execution_time"`
	TopQueries           []QueryCount       `json:"top_queries" db:"-"`
	IntentDistribution   IntentDistribution `json:"intent_distribution" db:"-"`
	Performance          PerformanceMetrics `json:"performance_metrics" db:"-"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
}

// TrendDirection labels how a metric moved between two windows
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// Trend compares the mean of the most recent window against the prior one
type Trend struct {
	Metric        string         `json:"metric"`
	Current       float64        `json:"current"`
	Previous      float64        `json:"previous"`
	ChangePercent float64        `json:"change_percent"`
	Direction     TrendDirection `json:"direction"`
}

// InsightSeverity separates advisory recommendations from alerts
type InsightSeverity string

const (
	SeverityRecommendation InsightSeverity = "recommendation"
	SeverityAlert          InsightSeverity = "alert"
)

// Insight is a threshold-triggered recommendation or alert for an org
type Insight struct {
	Severity InsightSeverity `json:"severity"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Value    float64         `json:"value"`
}
