package entities

import (
	"time"
)

// Document is a backend-ready search document produced by the transformer
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// SortField is one explicit sort criterion in a search request
type SortField struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// PaginationRequest selects a result window. Page takes precedence over From
// when both are set.
type PaginationRequest struct {
	Page int `json:"page,omitempty"`
	From int `json:"from,omitempty"`
	Size int `json:"size,omitempty"`
}

// HighlightRequest enables hit highlighting over the given fields
type HighlightRequest struct {
	Fields  []string `json:"fields,omitempty"`
	PreTag  string   `json:"pre_tag,omitempty"`
	PostTag string   `json:"post_tag,omitempty"`
}

// SearchRequest is the inbound query contract from the transport layer
type SearchRequest struct {
	Query        string                 `json:"query"`
	OrgID        string                 `json:"org_id"`
	UserID       string                 `json:"user_id,omitempty"`
	Indices      []IndexType            `json:"indices,omitempty"`
	Filters      map[string]interface{} `json:"filters,omitempty"`
	Facets       []string               `json:"facets,omitempty"`
	Sorting      []SortField            `json:"sorting,omitempty"`
	Pagination   PaginationRequest      `json:"pagination"`
	Highlighting *HighlightRequest      `json:"highlighting,omitempty"`
	Suggestions  bool                   `json:"suggestions,omitempty"`
	Personalized bool                   `json:"personalized,omitempty"`
}

// SearchResult is a single formatted hit
type SearchResult struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Score      float64                `json:"score"`
	Source     map[string]interface{} `json:"source"`
	Highlights map[string][]string    `json:"highlights,omitempty"`
}

// FacetValue is one UI-ready filter descriptor derived from an aggregation
type FacetValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// FacetGroup is the set of filter descriptors for one faceted field
type FacetGroup struct {
	Field  string       `json:"field"`
	Values []FacetValue `json:"values"`
}

// PaginationInfo describes the returned result window
type PaginationInfo struct {
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// SearchResponse is the outbound result contract for the transport layer
type SearchResponse struct {
	Query        string         `json:"query"`
	Total        int64          `json:"total"`
	Took         int64          `json:"took"`
	Results      []SearchResult `json:"results"`
	Facets       []FacetGroup   `json:"facets,omitempty"`
	Suggestions  []string       `json:"suggestions,omitempty"`
	Pagination   PaginationInfo `json:"pagination"`
	Personalized bool           `json:"personalized"`
	ExecutedAt   time.Time      `json:"executed_at"`
}
