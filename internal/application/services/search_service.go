package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
	"github.com/learnlane/coursesearch/pkg/utils"
)

const (
	searchCacheTTL = 30 * time.Second
	trackTimeout   = 5 * time.Second
)

// SearchService orchestrates the read path: validate, build, personalize,
// execute, format. Query logging, behavior recording, and suggestion
// enqueueing happen off the request path.
type SearchService struct {
	backend         providers.SearchBackend
	builder         *QueryBuilder
	personalization *PersonalizationService
	suggestions     *SuggestionService
	logs            repositories.SearchLogRepository
	queue           providers.JobQueue
	cache           providers.CacheProvider
}

// NewSearchService creates a new search service
func NewSearchService(
	backend providers.SearchBackend,
	builder *QueryBuilder,
	personalization *PersonalizationService,
	suggestions *SuggestionService,
	logs repositories.SearchLogRepository,
	queue providers.JobQueue,
	cache providers.CacheProvider,
) *SearchService {
	return &SearchService{
		backend:         backend,
		builder:         builder,
		personalization: personalization,
		suggestions:     suggestions,
		logs:            logs,
		queue:           queue,
		cache:           cache,
	}
}

// Search executes one search request. Backend unavailability degrades to an
// empty result set rather than an error; only invalid requests fail.
func (s *SearchService) Search(ctx context.Context, req *entities.SearchRequest) (*entities.SearchResponse, error) {
	logger := observability.LoggerFromContext(ctx)

	aliases, err := resolveAliases(req)
	if err != nil {
		return nil, err
	}

	body, err := s.builder.Build(req)
	if err != nil {
		return nil, err
	}

	personalized := req.Personalized && req.UserID != ""
	if personalized {
		body = s.personalization.ApplyBoosts(ctx, body, req.UserID, req.OrgID)
	}

	// personalized bodies differ per user, so only shared results are cached
	cacheKey := ""
	if !personalized {
		cacheKey = s.cacheKey(aliases, body)
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			var response entities.SearchResponse
			if json.Unmarshal(cached, &response) == nil {
				s.track(req, &response, false)
				return &response, nil
			}
		}
	}

	result, err := s.backend.Search(ctx, aliases, body)
	if err != nil {
		logger.Warn().Err(err).Str("org_id", req.OrgID).Msg("Search backend unavailable, returning empty results")
		response := s.emptyResponse(req)
		s.track(req, response, personalized)
		return response, nil
	}

	response := s.formatResponse(ctx, req, result, personalized)
	s.track(req, response, personalized)

	if cacheKey != "" {
		if data, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, searchCacheTTL); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache search response")
			}
		}
	}
	return response, nil
}

// RecordClick stores a result click, bumps the query's click-through count,
// and folds the click into the user's profile
func (s *SearchService) RecordClick(ctx context.Context, click *entities.ResultClick, userID, orgID, category string) error {
	if click.QueryID == "" || click.ResultID == "" {
		return apperrors.NewValidationError("query_id and result_id are required")
	}

	if err := s.logs.InsertClick(ctx, click); err != nil {
		return err
	}
	if err := s.logs.IncrementClickThrough(ctx, click.QueryID); err != nil {
		return err
	}

	if err := s.personalization.RecordClick(ctx, userID, orgID, click.ResultType, category); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("user_id", userID).Msg("Failed to record click in profile")
	}
	return nil
}

func (s *SearchService) formatResponse(ctx context.Context, req *entities.SearchRequest, result *providers.BackendSearchResult, personalized bool) *entities.SearchResponse {
	page, size := s.builder.Window(req.Pagination)

	response := &entities.SearchResponse{
		Query:        req.Query,
		Total:        result.Total,
		Took:         result.TookMs,
		Personalized: personalized,
		ExecutedAt:   time.Now().UTC(),
		Pagination: entities.PaginationInfo{
			Page:  page,
			Size:  size,
			Total: result.Total,
			Pages: Pages(result.Total, size),
		},
	}

	for _, hit := range result.Hits {
		resultType, _ := hit.Source["type"].(string)
		response.Results = append(response.Results, entities.SearchResult{
			ID:         hit.ID,
			Type:       resultType,
			Score:      hit.Score,
			Source:     hit.Source,
			Highlights: hit.Highlights,
		})
	}

	if len(req.Facets) > 0 {
		response.Facets = s.builder.FacetGroups(req.Facets, result.Aggregations)
	}

	if req.Suggestions && req.Query != "" {
		suggestions, err := s.suggestions.GetSuggestions(ctx, req.OrgID, req.Query, 5)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to fetch suggestions")
		} else {
			response.Suggestions = suggestions
		}
	}
	return response
}

func (s *SearchService) emptyResponse(req *entities.SearchRequest) *entities.SearchResponse {
	page, size := s.builder.Window(req.Pagination)
	return &entities.SearchResponse{
		Query:      req.Query,
		ExecutedAt: time.Now().UTC(),
		Results:    []entities.SearchResult{},
		Pagination: entities.PaginationInfo{Page: page, Size: size},
	}
}

// track records the executed search off the request path: query log row,
// profile update, suggestion job. A fresh timeout context keeps it alive
// after the caller's context is done.
func (s *SearchService) track(req *entities.SearchRequest, response *entities.SearchResponse, personalized bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()
		logger := observability.GetLogger()

		logEntry := &entities.SearchQueryLog{
			OrgID:           req.OrgID,
			QueryText:       req.Query,
			NormalizedQuery: utils.NormalizeQuery(req.Query),
			Facets:          req.Facets,
			ResultsCount:    response.Total,
			HasResults:      response.Total > 0,
			ExecutionTimeMs: response.Took,
		}
		if req.UserID != "" {
			userID := req.UserID
			logEntry.UserID = &userID
		}
		if len(req.Filters) > 0 {
			logEntry.Filters, _ = json.Marshal(req.Filters)
		}
		if len(req.Sorting) > 0 {
			logEntry.Sorting, _ = json.Marshal(req.Sorting)
		}

		if err := s.logs.Insert(ctx, logEntry); err != nil {
			logger.Error().Err(err).Str("org_id", req.OrgID).Msg("Failed to log search query")
		}

		if personalized {
			if err := s.personalization.RecordSearch(ctx, req.UserID, req.OrgID, logEntry.NormalizedQuery, req.Filters); err != nil {
				logger.Warn().Err(err).Str("user_id", req.UserID).Msg("Failed to record search in profile")
			}
		}

		if logEntry.NormalizedQuery != "" {
			payload := SuggestionJobPayload{OrgID: req.OrgID, Query: req.Query}
			if _, err := s.queue.Enqueue(ctx, providers.JobTypeSuggestions, payload); err != nil {
				logger.Warn().Err(err).Msg("Failed to enqueue suggestion job")
			}
		}
	}()
}

func (s *SearchService) cacheKey(aliases []string, body map[string]interface{}) string {
	payload, err := json.Marshal(struct {
		Aliases []string               `json:"aliases"`
		Body    map[string]interface{} `json:"body"`
	}{aliases, body})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return "search:" + hex.EncodeToString(sum[:16])
}

func resolveAliases(req *entities.SearchRequest) ([]string, error) {
	if req.OrgID == "" {
		return nil, apperrors.NewValidationError("org_id is required")
	}

	indices := req.Indices
	if len(indices) == 0 {
		indices = entities.AllIndexTypes
	}

	aliases := make([]string, 0, len(indices))
	for _, indexType := range indices {
		if !indexType.Valid() {
			return nil, apperrors.NewValidationError("unknown index type: " + string(indexType))
		}
		aliases = append(aliases, entities.AliasFor(req.OrgID, indexType))
	}
	return aliases, nil
}
