package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// AnalyticsAdapter implements AnalyticsRepository over PostgreSQL
type AnalyticsAdapter struct {
	client *postgres.Client
}

// NewAnalyticsAdapter creates a new daily analytics adapter
func NewAnalyticsAdapter(client *postgres.Client) repositories.AnalyticsRepository {
	return &AnalyticsAdapter{client: client}
}

// InsertOnce writes the rollup unless one already exists for (org, date)
func (a *AnalyticsAdapter) InsertOnce(ctx context.Context, analytics *entities.DailyAnalytics) (bool, error) {
	if analytics.ID == "" {
		analytics.ID = uuid.New().String()
	}
	if analytics.CreatedAt.IsZero() {
		analytics.CreatedAt = time.Now()
	}

	topQueries, err := json.Marshal(analytics.TopQueries)
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode top queries", err)
	}
	intents, err := json.Marshal(analytics.IntentDistribution)
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode intent distribution", err)
	}
	performance, err := json.Marshal(analytics.Performance)
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode performance metrics", err)
	}

	query := `
		INSERT INTO daily_analytics
		(id, org_id, date, total_queries, unique_users, queries_with_results,
		 total_clicks, average_ctr, average_execution_time, top_queries,
		 intent_distribution, performance_metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (org_id, date) DO NOTHING
	`
	result, err := a.client.DB().ExecContext(ctx, query,
		analytics.ID,
		analytics.OrgID,
		analytics.Date,
		analytics.TotalQueries,
		analytics.UniqueUsers,
		analytics.QueriesWithResults,
		analytics.TotalClicks,
		analytics.AverageCTR,
		analytics.AverageExecutionTime,
		topQueries,
		intents,
		performance,
		analytics.CreatedAt,
	)
	if err != nil {
		return false, apperrors.NewInternalError("failed to insert daily analytics", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to read insert result", err)
	}
	return affected > 0, nil
}

// GetByOrgAndDate returns one rollup or a NotFound error
func (a *AnalyticsAdapter) GetByOrgAndDate(ctx context.Context, orgID string, date time.Time) (*entities.DailyAnalytics, error) {
	rollups, err := a.ListRange(ctx, orgID, date, date)
	if err != nil {
		return nil, err
	}
	if len(rollups) == 0 {
		return nil, apperrors.NewNotFoundError("daily analytics not found")
	}
	return rollups[0], nil
}

// ListRange returns rollups for [from, to] ordered by date ascending
func (a *AnalyticsAdapter) ListRange(ctx context.Context, orgID string, from, to time.Time) ([]*entities.DailyAnalytics, error) {
	query := `
		SELECT id, org_id, date, total_queries, unique_users, queries_with_results,
		       total_clicks, average_ctr, average_execution_time, top_queries,
		       intent_distribution, performance_metrics, created_at
		FROM daily_analytics
		WHERE org_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := a.client.DB().QueryContext(ctx, query, orgID, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list daily analytics", err)
	}
	defer rows.Close()

	var rollups []*entities.DailyAnalytics
	for rows.Next() {
		rollup := &entities.DailyAnalytics{}
		var topQueries, intents, performance []byte

		err := rows.Scan(
			&rollup.ID,
			&rollup.OrgID,
			&rollup.Date,
			&rollup.TotalQueries,
			&rollup.UniqueUsers,
			&rollup.QueriesWithResults,
			&rollup.TotalClicks,
			&rollup.AverageCTR,
			&rollup.AverageExecutionTime,
			&topQueries,
			&intents,
			&performance,
			&rollup.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan daily analytics", err)
		}

		if len(topQueries) > 0 {
			if err := json.Unmarshal(topQueries, &rollup.TopQueries); err != nil {
				return nil, apperrors.NewInternalError("failed to decode top queries", err)
			}
		}
		if len(intents) > 0 {
			if err := json.Unmarshal(intents, &rollup.IntentDistribution); err != nil {
				return nil, apperrors.NewInternalError("failed to decode intent distribution", err)
			}
		}
		if len(performance) > 0 {
			if err := json.Unmarshal(performance, &rollup.Performance); err != nil {
				return nil, apperrors.NewInternalError("failed to decode performance metrics", err)
			}
		}
		rollups = append(rollups, rollup)
	}
	return rollups, rows.Err()
}
