package entities

import (
	"encoding/json"
	"time"
)

// SearchIntent is a coarse classification of a query's purpose
type SearchIntent string

const (
	IntentLearning SearchIntent = "learning"
	IntentResearch SearchIntent = "research"
	IntentSpecific SearchIntent = "specific"
	IntentBrowsing SearchIntent = "browsing"

	// IntentUnknown marks logs the analytics path has not classified yet
	IntentUnknown SearchIntent = ""
)

// SearchQueryLog is an append-only record of one executed search.
// SearchIntent is the only field mutated after creation, exactly once,
// by the analytics aggregator.
type SearchQueryLog struct {
	ID                string          `json:"id" db:"id"`
	UserID            *string         `json:"user_id,omitempty" db:"user_id"`
	OrgID             string          `json:"org_id" db:"org_id"`
	QueryText         string          `json:"query_text" db:"query_text"`
	NormalizedQuery   string          `json:"normalized_query" db:"normalized_query"`
	Filters           json.RawMessage `json:"filters,omitempty" db:"filters"`
	Facets            []string        `json:"facets,omitempty" db:"-"`
	Sorting           json.RawMessage `json:"sorting,omitempty" db:"sorting"`
	ResultsCount      int64           `json:"results_count" db:"results_count"`
	HasResults        bool            `json:"has_results" db:"has_results"`
	ExecutionTimeMs   int64           `json:"execution_time_ms" db:"execution_time_ms"`
	SearchIntent      SearchIntent    `json:"search_intent,omitempty" db:"search_intent"`
	ClickThroughCount int64           `json:"click_through_count" db:"click_through_count"`
	ExecutedAt        time.Time       `json:"executed_at" db:"executed_at"`
}

// ResultClick records a user clicking one result of a logged query
type ResultClick struct {
	ID               string    `json:"id" db:"id"`
	QueryID          string    `json:"query_id" db:"query_id"`
	ResultID         string    `json:"result_id" db:"result_id"`
	ResultType       string    `json:"result_type" db:"result_type"`
	Position         int       `json:"position" db:"position"`
	RelevanceScore   float64   `json:"relevance_score" db:"relevance_score"`
	TimeSpentSeconds int       `json:"time_spent_seconds" db:"time_spent_seconds"`
	ClickedAt        time.Time `json:"clicked_at" db:"clicked_at"`
}
