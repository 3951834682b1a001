package entities

import (
	"time"
)

// MaxQueryPatterns bounds the per-profile query pattern ring buffer
const MaxQueryPatterns = 20

// Preferences are the explicit interests a user has declared or accumulated
type Preferences struct {
	Categories       []string `json:"categories,omitempty"`
	Instructors      []string `json:"instructors,omitempty"`
	DifficultyLevels []string `json:"difficulty_levels,omitempty"`
	ContentTypes     []string `json:"content_types,omitempty"`
	Languages        []string `json:"languages,omitempty"`
	Goals            []string `json:"goals,omitempty"`
}

// SearchBehavior aggregates observed search activity for a user
type SearchBehavior struct {
	FilterUsage   map[string]int64 `json:"filter_usage,omitempty"`
	QueryPatterns []string         `json:"query_patterns,omitempty"`
	ClickBehavior map[string]int64 `json:"click_behavior,omitempty"`
	Frequency     map[string]int64 `json:"frequency,omitempty"`
}

// RecordQueryPattern appends a query to the bounded ring buffer, evicting
// the oldest entry once MaxQueryPatterns is reached.
func (b *SearchBehavior) RecordQueryPattern(query string) {
	if query == "" {
		return
	}
	b.QueryPatterns = append(b.QueryPatterns, query)
	if len(b.QueryPatterns) > MaxQueryPatterns {
		b.QueryPatterns = b.QueryPatterns[len(b.QueryPatterns)-MaxQueryPatterns:]
	}
}

// BoostingRule is a user-defined ranking preference applied at query time
type BoostingRule struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
	Boost  float64  `json:"boost"`
}

// PersonalizationProfile is a per-user record of preferences and behavior
// used to bias ranking. Profiles are created lazily on the first qualifying
// activity.
type PersonalizationProfile struct {
	ID                  string         `json:"id" db:"id"`
	UserID              string         `json:"user_id" db:"user_id"`
	OrgID               string         `json:"org_id" db:"org_id"`
	Preferences         Preferences    `json:"preferences" db:"-"`
	SearchBehavior      SearchBehavior `json:"search_behavior" db:"-"`
	BoostingRules       []BoostingRule `json:"boosting_rules,omitempty" db:"-"`
	HiddenResults       []string       `json:"hidden_results,omitempty" db:"-"`
	ProfileCompleteness int            `json:"profile_completeness" db:"profile_completeness"`
	LastUpdated         time.Time      `json:"last_updated" db:"last_updated"`
}

// NewPersonalizationProfile returns an empty profile for lazy creation
func NewPersonalizationProfile(userID, orgID string) *PersonalizationProfile {
	return &PersonalizationProfile{
		UserID: userID,
		OrgID:  orgID,
		SearchBehavior: SearchBehavior{
			FilterUsage:   map[string]int64{},
			ClickBehavior: map[string]int64{},
			Frequency:     map[string]int64{},
		},
	}
}

// RecomputeCompleteness rescores profile completeness on a 0-100 scale
// from which profile sections carry any signal.
func (p *PersonalizationProfile) RecomputeCompleteness() {
	score := 0
	if len(p.Preferences.Categories) > 0 {
		score += 20
	}
	if len(p.Preferences.Instructors) > 0 || len(p.Preferences.ContentTypes) > 0 {
		score += 10
	}
	if len(p.Preferences.DifficultyLevels) > 0 || len(p.Preferences.Languages) > 0 {
		score += 10
	}
	if len(p.Preferences.Goals) > 0 {
		score += 10
	}
	if len(p.SearchBehavior.QueryPatterns) > 0 {
		score += 20
	}
	if len(p.SearchBehavior.FilterUsage) > 0 {
		score += 10
	}
	if len(p.SearchBehavior.ClickBehavior) > 0 {
		score += 10
	}
	if len(p.BoostingRules) > 0 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	p.ProfileCompleteness = score
}
