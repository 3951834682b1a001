package entities

import (
	"encoding/json"
	"time"
)

// Suggestion is a stored candidate string for autocomplete and trending
// surfaces. ClickThroughRate is always kept within [0, 1].
type Suggestion struct {
	ID               string          `json:"id" db:"id"`
	OrgID            string          `json:"org_id" db:"org_id"`
	Type             string          `json:"suggestion_type" db:"suggestion_type"`
	Text             string          `json:"text" db:"text"`
	DisplayText      string          `json:"display_text" db:"display_text"`
	Popularity       int64           `json:"popularity" db:"popularity"`
	ClickThroughRate float64         `json:"click_through_rate" db:"click_through_rate"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	IsPromoted       bool            `json:"is_promoted" db:"is_promoted"`
	DisplayOrder     int             `json:"display_order" db:"display_order"`
	Metadata         json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// SuggestionTypeQuery marks suggestions sourced from executed queries
const SuggestionTypeQuery = "query"
