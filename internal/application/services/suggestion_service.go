package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
	"github.com/learnlane/coursesearch/pkg/utils"
)

const (
	suggestionCacheTTL   = time.Minute
	defaultSuggestionMax = 10
)

// SuggestionJobPayload carries one executed query into the suggestion store
type SuggestionJobPayload struct {
	OrgID       string `json:"org_id"`
	Query       string `json:"query"`
	DisplayText string `json:"display_text,omitempty"`
}

// SuggestionService maintains autocomplete candidates from executed queries
// and serves prefix lookups with short-lived caching
type SuggestionService struct {
	repo  repositories.SuggestionRepository
	cache providers.CacheProvider
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(repo repositories.SuggestionRepository, cache providers.CacheProvider) *SuggestionService {
	return &SuggestionService{repo: repo, cache: cache}
}

// HandleSuggestionJob consumes search.suggestions jobs. The upsert is
// idempotent per (org, text), so redelivery only re-bumps popularity.
func (s *SuggestionService) HandleSuggestionJob(ctx context.Context, job *providers.Job) error {
	var payload SuggestionJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Msg("Dropping malformed suggestion job")
		return nil
	}

	normalized := utils.NormalizeQuery(payload.Query)
	if normalized == "" || payload.OrgID == "" {
		return nil
	}

	display := payload.DisplayText
	if display == "" {
		display = payload.Query
	}

	return s.repo.Upsert(ctx, &entities.Suggestion{
		OrgID:       payload.OrgID,
		Type:        entities.SuggestionTypeQuery,
		Text:        normalized,
		DisplayText: display,
		Popularity:  1,
		IsActive:    true,
	})
}

// GetSuggestions returns display strings for a prefix, or the most popular
// suggestions when the prefix is empty
func (s *SuggestionService) GetSuggestions(ctx context.Context, orgID, prefix string, limit int) ([]string, error) {
	if orgID == "" {
		return nil, apperrors.NewValidationError("org_id is required")
	}
	if limit <= 0 {
		limit = defaultSuggestionMax
	}

	normalized := utils.NormalizeQuery(prefix)
	cacheKey := fmt.Sprintf("suggest:%s:%s:%d", orgID, normalized, limit)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var out []string
		if json.Unmarshal(cached, &out) == nil {
			return out, nil
		}
	}

	var (
		suggestions []*entities.Suggestion
		err         error
	)
	if normalized == "" {
		suggestions, err = s.repo.ListTop(ctx, orgID, limit)
	} else {
		suggestions, err = s.repo.ListPrefix(ctx, orgID, normalized, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		text := suggestion.DisplayText
		if text == "" {
			text = suggestion.Text
		}
		out = append(out, text)
	}

	if data, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, cacheKey, data, suggestionCacheTTL); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to cache suggestions")
		}
	}
	return out, nil
}

// RecalculateForOrg refreshes click-through rates from the query log
func (s *SuggestionService) RecalculateForOrg(ctx context.Context, orgID string) error {
	return s.repo.RecalculateClickThroughRates(ctx, orgID)
}
