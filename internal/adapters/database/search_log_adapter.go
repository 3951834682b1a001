package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

const (
	queryLogTable = "search_query_logs"
	clickTable    = "result_clicks"
)

var queryLogColumns = []interface{}{
	"id", "user_id", "org_id", "query_text", "normalized_query", "filters",
	"facets", "sorting", "results_count", "has_results", "execution_time_ms",
	"search_intent", "click_through_count", "executed_at",
}

// SearchLogAdapter implements SearchLogRepository over PostgreSQL
type SearchLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchLogAdapter creates a new search log adapter
func NewSearchLogAdapter(client *postgres.Client) repositories.SearchLogRepository {
	return &SearchLogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB().DB),
	}
}

// Insert appends a query log row
func (a *SearchLogAdapter) Insert(ctx context.Context, log *entities.SearchQueryLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.ExecutedAt.IsZero() {
		log.ExecutedAt = time.Now()
	}

	record := goqu.Record{
		"id":                  log.ID,
		"user_id":             log.UserID,
		"org_id":              log.OrgID,
		"query_text":          log.QueryText,
		"normalized_query":    log.NormalizedQuery,
		"filters":             []byte(log.Filters),
		"facets":              pq.Array(log.Facets),
		"sorting":             []byte(log.Sorting),
		"results_count":       log.ResultsCount,
		"has_results":         log.HasResults,
		"execution_time_ms":   log.ExecutionTimeMs,
		"search_intent":       string(log.SearchIntent),
		"click_through_count": log.ClickThroughCount,
		"executed_at":         log.ExecutedAt,
	}

	query, args, err := a.db.Insert(queryLogTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build query log insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert query log", err)
	}
	return nil
}

// InsertClick records a result click against a logged query
func (a *SearchLogAdapter) InsertClick(ctx context.Context, click *entities.ResultClick) error {
	if click.ID == "" {
		click.ID = uuid.New().String()
	}
	if click.ClickedAt.IsZero() {
		click.ClickedAt = time.Now()
	}

	record := goqu.Record{
		"id":                 click.ID,
		"query_id":           click.QueryID,
		"result_id":          click.ResultID,
		"result_type":        click.ResultType,
		"position":           click.Position,
		"relevance_score":    click.RelevanceScore,
		"time_spent_seconds": click.TimeSpentSeconds,
		"clicked_at":         click.ClickedAt,
	}

	query, args, err := a.db.Insert(clickTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build click insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to insert result click", err)
	}
	return nil
}

// IncrementClickThrough bumps the click counter of one query log
func (a *SearchLogAdapter) IncrementClickThrough(ctx context.Context, queryID string) error {
	query := `UPDATE search_query_logs SET click_through_count = click_through_count + 1 WHERE id = $1`
	if _, err := a.client.DB().ExecContext(ctx, query, queryID); err != nil {
		return apperrors.NewInternalError("failed to increment click through count", err)
	}
	return nil
}

// ListByOrgAndDay returns logs executed on the given UTC day
func (a *SearchLogAdapter) ListByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.SearchQueryLog, error) {
	from, to := dayBounds(day)

	query, args, err := a.db.Select(queryLogColumns...).From(queryLogTable).
		Where(
			goqu.Ex{"org_id": orgID},
			goqu.C("executed_at").Gte(from),
			goqu.C("executed_at").Lt(to),
		).
		Order(goqu.I("executed_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query log list", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list query logs", err)
	}
	defer rows.Close()

	var logs []*entities.SearchQueryLog
	for rows.Next() {
		log := &entities.SearchQueryLog{}
		var userID sql.NullString
		var filters, sorting []byte
		var intent string

		err := rows.Scan(
			&log.ID,
			&userID,
			&log.OrgID,
			&log.QueryText,
			&log.NormalizedQuery,
			&filters,
			pq.Array(&log.Facets),
			&sorting,
			&log.ResultsCount,
			&log.HasResults,
			&log.ExecutionTimeMs,
			&intent,
			&log.ClickThroughCount,
			&log.ExecutedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan query log", err)
		}

		if userID.Valid {
			log.UserID = &userID.String
		}
		log.Filters = filters
		log.Sorting = sorting
		log.SearchIntent = entities.SearchIntent(intent)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// ListClicksByOrgAndDay returns clicks on the given UTC day joined through
// the query log's org
func (a *SearchLogAdapter) ListClicksByOrgAndDay(ctx context.Context, orgID string, day time.Time) ([]*entities.ResultClick, error) {
	from, to := dayBounds(day)

	query := `
		SELECT c.id, c.query_id, c.result_id, c.result_type, c.position,
		       c.relevance_score, c.time_spent_seconds, c.clicked_at
		FROM result_clicks c
		JOIN search_query_logs q ON q.id = c.query_id
		WHERE q.org_id = $1 AND c.clicked_at >= $2 AND c.clicked_at < $3
		ORDER BY c.clicked_at ASC
	`

	rows, err := a.client.DB().QueryContext(ctx, query, orgID, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list result clicks", err)
	}
	defer rows.Close()

	var clicks []*entities.ResultClick
	for rows.Next() {
		click := &entities.ResultClick{}
		err := rows.Scan(
			&click.ID,
			&click.QueryID,
			&click.ResultID,
			&click.ResultType,
			&click.Position,
			&click.RelevanceScore,
			&click.TimeSpentSeconds,
			&click.ClickedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan result click", err)
		}
		clicks = append(clicks, click)
	}
	return clicks, rows.Err()
}

// UpdateIntentOnce sets the intent only when it has not been set before
func (a *SearchLogAdapter) UpdateIntentOnce(ctx context.Context, id string, intent entities.SearchIntent) error {
	query := `UPDATE search_query_logs SET search_intent = $1 WHERE id = $2 AND search_intent = ''`
	if _, err := a.client.DB().ExecContext(ctx, query, string(intent), id); err != nil {
		return apperrors.NewInternalError("failed to update search intent", err)
	}
	return nil
}

// ListActiveOrgs returns orgs that logged at least one query that day
func (a *SearchLogAdapter) ListActiveOrgs(ctx context.Context, day time.Time) ([]string, error) {
	from, to := dayBounds(day)

	query := `SELECT DISTINCT org_id FROM search_query_logs WHERE executed_at >= $1 AND executed_at < $2`
	rows, err := a.client.DB().QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list active orgs", err)
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, apperrors.NewInternalError("failed to scan org id", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
