package services

import (
	"context"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
	"github.com/learnlane/coursesearch/pkg/utils"
)

const maxAccumulatedCategories = 10

// PersonalizationService owns per-user profiles: it biases queries with
// profile-derived boosts and records search and click activity. Profiles are
// created lazily on the first qualifying activity.
type PersonalizationService struct {
	repo repositories.PersonalizationRepository
}

// NewPersonalizationService creates a new personalization service
func NewPersonalizationService(repo repositories.PersonalizationRepository) *PersonalizationService {
	return &PersonalizationService{repo: repo}
}

// ApplyBoosts rewrites a query body with profile-derived should and must_not
// clauses. Personalization is fail-open: any profile problem returns the
// query unchanged.
func (s *PersonalizationService) ApplyBoosts(ctx context.Context, query map[string]interface{}, userID, orgID string) map[string]interface{} {
	if userID == "" {
		return query
	}

	profile, err := s.repo.Get(ctx, userID, orgID)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("user_id", userID).Msg("Failed to load personalization profile, skipping boosts")
		}
		return query
	}

	boolQuery := extractBoolQuery(query)
	if boolQuery == nil {
		observability.LoggerFromContext(ctx).Warn().
			Str("user_id", userID).Msg("Query body has no bool clause, skipping personalization")
		return query
	}

	var should []interface{}
	if existing, ok := boolQuery["should"].([]interface{}); ok {
		should = existing
	}

	if len(profile.Preferences.Categories) > 0 {
		should = append(should, map[string]interface{}{
			"terms": map[string]interface{}{
				"category": profile.Preferences.Categories,
				"boost":    2.0,
			},
		})
	}
	for _, rule := range profile.BoostingRules {
		if rule.Field == "" || len(rule.Values) == 0 || rule.Boost <= 0 {
			continue
		}
		should = append(should, map[string]interface{}{
			"terms": map[string]interface{}{
				rule.Field: rule.Values,
				"boost":    rule.Boost,
			},
		})
	}
	if len(should) > 0 {
		boolQuery["should"] = should
	}

	if len(profile.HiddenResults) > 0 {
		var mustNot []interface{}
		if existing, ok := boolQuery["must_not"].([]interface{}); ok {
			mustNot = existing
		}
		mustNot = append(mustNot, map[string]interface{}{
			"ids": map[string]interface{}{"values": profile.HiddenResults},
		})
		boolQuery["must_not"] = mustNot
	}

	return query
}

// RecordSearch folds one executed search into the user's behavior profile
func (s *PersonalizationService) RecordSearch(ctx context.Context, userID, orgID, normalizedQuery string, filters map[string]interface{}) error {
	if userID == "" {
		return nil
	}

	profile, err := s.getOrCreate(ctx, userID, orgID)
	if err != nil {
		return err
	}

	profile.SearchBehavior.RecordQueryPattern(normalizedQuery)
	for field := range filters {
		profile.SearchBehavior.FilterUsage[field]++
	}
	profile.SearchBehavior.Frequency[time.Now().UTC().Weekday().String()]++

	profile.RecomputeCompleteness()
	profile.LastUpdated = time.Now()
	return s.repo.Save(ctx, profile)
}

// RecordClick folds one result click into the user's behavior profile.
// Clicked categories accumulate into preferences, bounded so early interests
// don't pin the profile forever.
func (s *PersonalizationService) RecordClick(ctx context.Context, userID, orgID, resultType, category string) error {
	if userID == "" {
		return nil
	}

	profile, err := s.getOrCreate(ctx, userID, orgID)
	if err != nil {
		return err
	}

	if resultType != "" {
		profile.SearchBehavior.ClickBehavior[resultType]++
	}
	if category != "" {
		profile.Preferences.Categories = utils.DedupeTags(
			append(profile.Preferences.Categories, category), maxAccumulatedCategories)
	}

	profile.RecomputeCompleteness()
	profile.LastUpdated = time.Now()
	return s.repo.Save(ctx, profile)
}

// GetProfile returns the stored profile, or a NotFound error
func (s *PersonalizationService) GetProfile(ctx context.Context, userID, orgID string) (*entities.PersonalizationProfile, error) {
	return s.repo.Get(ctx, userID, orgID)
}

func (s *PersonalizationService) getOrCreate(ctx context.Context, userID, orgID string) (*entities.PersonalizationProfile, error) {
	profile, err := s.repo.Get(ctx, userID, orgID)
	if err == nil {
		ensureBehaviorMaps(profile)
		return profile, nil
	}
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return entities.NewPersonalizationProfile(userID, orgID), nil
	}
	return nil, err
}

func ensureBehaviorMaps(profile *entities.PersonalizationProfile) {
	if profile.SearchBehavior.FilterUsage == nil {
		profile.SearchBehavior.FilterUsage = map[string]int64{}
	}
	if profile.SearchBehavior.ClickBehavior == nil {
		profile.SearchBehavior.ClickBehavior = map[string]int64{}
	}
	if profile.SearchBehavior.Frequency == nil {
		profile.SearchBehavior.Frequency = map[string]int64{}
	}
}

func extractBoolQuery(body map[string]interface{}) map[string]interface{} {
	query, ok := body["query"].(map[string]interface{})
	if !ok {
		return nil
	}
	boolQuery, ok := query["bool"].(map[string]interface{})
	if !ok {
		return nil
	}
	return boolQuery
}
