package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// PersonalizationAdapter implements PersonalizationRepository over
// PostgreSQL. Preferences, behavior, and boosting rules are stored as JSONB.
type PersonalizationAdapter struct {
	client *postgres.Client
}

// NewPersonalizationAdapter creates a new personalization adapter
func NewPersonalizationAdapter(client *postgres.Client) repositories.PersonalizationRepository {
	return &PersonalizationAdapter{client: client}
}

// Get returns the profile for a user, or a NotFound error
func (a *PersonalizationAdapter) Get(ctx context.Context, userID, orgID string) (*entities.PersonalizationProfile, error) {
	query := `
		SELECT id, user_id, org_id, preferences, search_behavior, boosting_rules,
		       hidden_results, profile_completeness, last_updated
		FROM personalization_profiles
		WHERE user_id = $1 AND org_id = $2
	`

	rows, err := a.client.DB().QueryContext(ctx, query, userID, orgID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query personalization profile", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, apperrors.NewNotFoundError("personalization profile not found")
	}

	profile := &entities.PersonalizationProfile{}
	var preferences, behavior, rules []byte

	err = rows.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.OrgID,
		&preferences,
		&behavior,
		&rules,
		pq.Array(&profile.HiddenResults),
		&profile.ProfileCompleteness,
		&profile.LastUpdated,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan personalization profile", err)
	}

	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &profile.Preferences); err != nil {
			return nil, apperrors.NewInternalError("failed to decode preferences", err)
		}
	}
	if len(behavior) > 0 {
		if err := json.Unmarshal(behavior, &profile.SearchBehavior); err != nil {
			return nil, apperrors.NewInternalError("failed to decode search behavior", err)
		}
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &profile.BoostingRules); err != nil {
			return nil, apperrors.NewInternalError("failed to decode boosting rules", err)
		}
	}
	return profile, nil
}

// Save upserts the profile keyed by (user, org)
func (a *PersonalizationAdapter) Save(ctx context.Context, profile *entities.PersonalizationProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.LastUpdated = time.Now()

	preferences, err := json.Marshal(profile.Preferences)
	if err != nil {
		return apperrors.NewInternalError("failed to encode preferences", err)
	}
	behavior, err := json.Marshal(profile.SearchBehavior)
	if err != nil {
		return apperrors.NewInternalError("failed to encode search behavior", err)
	}
	rules, err := json.Marshal(profile.BoostingRules)
	if err != nil {
		return apperrors.NewInternalError("failed to encode boosting rules", err)
	}

	query := `
		INSERT INTO personalization_profiles
		(id, user_id, org_id, preferences, search_behavior, boosting_rules,
		 hidden_results, profile_completeness, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, org_id) DO UPDATE
		SET preferences = EXCLUDED.preferences,
		    search_behavior = EXCLUDED.search_behavior,
		    boosting_rules = EXCLUDED.boosting_rules,
		    hidden_results = EXCLUDED.hidden_results,
		    profile_completeness = EXCLUDED.profile_completeness,
		    last_updated = EXCLUDED.last_updated
	`
	_, err = a.client.DB().ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.OrgID,
		preferences,
		behavior,
		rules,
		pq.Array(profile.HiddenResults),
		profile.ProfileCompleteness,
		profile.LastUpdated,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to save personalization profile", err)
	}
	return nil
}
