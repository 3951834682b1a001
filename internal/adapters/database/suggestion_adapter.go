package database

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

const suggestionTable = "suggestions"

// SuggestionAdapter implements SuggestionRepository over PostgreSQL
type SuggestionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSuggestionAdapter creates a new suggestion adapter
func NewSuggestionAdapter(client *postgres.Client) repositories.SuggestionRepository {
	return &SuggestionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB().DB),
	}
}

// Upsert inserts the suggestion or bumps popularity on (org, text) conflict
func (a *SuggestionAdapter) Upsert(ctx context.Context, suggestion *entities.Suggestion) error {
	if suggestion.ID == "" {
		suggestion.ID = uuid.New().String()
	}
	now := time.Now()
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = now
	}
	suggestion.UpdatedAt = now

	query := `
		INSERT INTO suggestions
		(id, org_id, suggestion_type, text, display_text, popularity, click_through_rate,
		 is_active, is_promoted, display_order, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (org_id, text) DO UPDATE
		SET popularity = suggestions.popularity + 1,
		    display_text = EXCLUDED.display_text,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := a.client.DB().ExecContext(ctx, query,
		suggestion.ID,
		suggestion.OrgID,
		suggestion.Type,
		suggestion.Text,
		suggestion.DisplayText,
		suggestion.Popularity,
		suggestion.ClickThroughRate,
		suggestion.IsActive,
		suggestion.IsPromoted,
		suggestion.DisplayOrder,
		[]byte(suggestion.Metadata),
		suggestion.CreatedAt,
		suggestion.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert suggestion", err)
	}
	return nil
}

// ListPrefix returns active suggestions matching a text prefix, promoted
// entries first, then by popularity
func (a *SuggestionAdapter) ListPrefix(ctx context.Context, orgID, prefix string, limit int) ([]*entities.Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := a.db.Select(
		"id", "org_id", "suggestion_type", "text", "display_text", "popularity",
		"click_through_rate", "is_active", "is_promoted", "display_order",
		"metadata", "created_at", "updated_at",
	).From(suggestionTable).
		Where(
			goqu.Ex{"org_id": orgID, "is_active": true},
			goqu.C("text").Like(escapeLike(prefix)+"%"),
		).
		Order(
			goqu.I("is_promoted").Desc(),
			goqu.I("display_order").Asc(),
			goqu.I("popularity").Desc(),
		).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build suggestion query", err)
	}

	return a.list(ctx, query, args)
}

// ListTop returns the most popular active suggestions for an org
func (a *SuggestionAdapter) ListTop(ctx context.Context, orgID string, limit int) ([]*entities.Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	query, args, err := a.db.Select(
		"id", "org_id", "suggestion_type", "text", "display_text", "popularity",
		"click_through_rate", "is_active", "is_promoted", "display_order",
		"metadata", "created_at", "updated_at",
	).From(suggestionTable).
		Where(goqu.Ex{"org_id": orgID, "is_active": true}).
		Order(goqu.I("is_promoted").Desc(), goqu.I("popularity").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build top suggestion query", err)
	}

	return a.list(ctx, query, args)
}

// RecalculateClickThroughRates refreshes CTR from logs and clicks, clamped
// to [0, 1]
func (a *SuggestionAdapter) RecalculateClickThroughRates(ctx context.Context, orgID string) error {
	query := `
		UPDATE suggestions s
		SET click_through_rate = LEAST(1.0, GREATEST(0.0, stats.ctr)),
		    updated_at = NOW()
		FROM (
			SELECT q.normalized_query,
			       COALESCE(SUM(q.click_through_count), 0)::float / COUNT(q.id) AS ctr
			FROM search_query_logs q
			WHERE q.org_id = $1
			GROUP BY q.normalized_query
		) stats
		WHERE s.org_id = $1 AND s.text = stats.normalized_query
	`
	if _, err := a.client.DB().ExecContext(ctx, query, orgID); err != nil {
		return apperrors.NewInternalError("failed to recalculate click through rates", err)
	}
	return nil
}

func (a *SuggestionAdapter) list(ctx context.Context, query string, args []interface{}) ([]*entities.Suggestion, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list suggestions", err)
	}
	defer rows.Close()

	var suggestions []*entities.Suggestion
	for rows.Next() {
		s := &entities.Suggestion{}
		var metadata []byte
		err := rows.Scan(
			&s.ID,
			&s.OrgID,
			&s.Type,
			&s.Text,
			&s.DisplayText,
			&s.Popularity,
			&s.ClickThroughRate,
			&s.IsActive,
			&s.IsPromoted,
			&s.DisplayOrder,
			&metadata,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan suggestion", err)
		}
		s.Metadata = metadata
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
