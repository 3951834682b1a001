package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	facetBucketSize = 50

	defaultHighlightPreTag  = "<em>"
	defaultHighlightPostTag = "</em>"
)

var searchFields = []string{"title^3", "description^2", "tags^2", "instructor^1.5", "content"}

// QueryBuilder translates the inbound search contract into a backend query
// body. Everything is wrapped in a bool query so personalization can append
// should and must_not clauses without restructuring the base query.
type QueryBuilder struct{}

// NewQueryBuilder creates a new query builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build produces the full request body for a search. Malformed filters and
// sort orders are rejected before any backend call.
func (b *QueryBuilder) Build(req *entities.SearchRequest) (map[string]interface{}, error) {
	boolQuery := map[string]interface{}{}

	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	} else {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":                queryText,
					"fields":               searchFields,
					"fuzziness":            "AUTO",
					"operator":             "and",
					"minimum_should_match": "75%",
				},
			},
		}
		boolQuery["should"] = []interface{}{
			map[string]interface{}{
				"match_phrase": map[string]interface{}{
					"title": map[string]interface{}{"query": queryText, "boost": 2.0},
				},
			},
			map[string]interface{}{
				"match_phrase": map[string]interface{}{
					"description": map[string]interface{}{"query": queryText, "boost": 2.0},
				},
			},
			map[string]interface{}{
				"match": map[string]interface{}{
					"title": map[string]interface{}{"query": queryText, "boost": 3.0},
				},
			},
		}
	}

	filters, err := buildFilters(req.Filters)
	if err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	sort, err := buildSort(req.Sorting)
	if err != nil {
		return nil, err
	}

	from, size := resolveWindow(req.Pagination)

	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  sort,
		"from":  from,
		"size":  size,
	}

	if len(req.Facets) > 0 {
		aggs := map[string]interface{}{}
		for _, facet := range req.Facets {
			aggs[facet] = map[string]interface{}{
				"terms": map[string]interface{}{
					"field": facet,
					"size":  facetBucketSize,
				},
			}
		}
		body["aggs"] = aggs
	}

	if req.Highlighting != nil && len(req.Highlighting.Fields) > 0 {
		body["highlight"] = buildHighlight(req.Highlighting)
	}

	return body, nil
}

// FacetGroups converts raw aggregation buckets into UI-ready filter
// descriptors, preserving the order facets were requested in
func (b *QueryBuilder) FacetGroups(requested []string, aggregations map[string][]providers.AggregationBucket) []entities.FacetGroup {
	var groups []entities.FacetGroup
	for _, field := range requested {
		buckets, ok := aggregations[field]
		if !ok {
			continue
		}
		group := entities.FacetGroup{Field: field}
		for _, bucket := range buckets {
			group.Values = append(group.Values, entities.FacetValue{
				Value: bucket.Key,
				Label: bucket.Key,
				Count: bucket.Count,
			})
		}
		groups = append(groups, group)
	}
	return groups
}

// Window reports the effective page and size after clamping, for building
// pagination info in the response
func (b *QueryBuilder) Window(p entities.PaginationRequest) (page, size int) {
	from, size := resolveWindow(p)
	return from/size + 1, size
}

// Pages computes the total page count for a result window
func Pages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(size)))
}

func buildFilters(filters map[string]interface{}) ([]interface{}, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	var clauses []interface{}
	for field, value := range filters {
		switch v := value.(type) {
		case []interface{}:
			if len(v) == 0 {
				continue
			}
			clauses = append(clauses, map[string]interface{}{
				"terms": map[string]interface{}{field: v},
			})
		case []string:
			if len(v) == 0 {
				continue
			}
			values := make([]interface{}, len(v))
			for i, s := range v {
				values[i] = s
			}
			clauses = append(clauses, map[string]interface{}{
				"terms": map[string]interface{}{field: values},
			})
		case map[string]interface{}:
			rangeClause, err := buildRange(field, v)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, rangeClause)
		case string, bool, int, int64, float64:
			clauses = append(clauses, map[string]interface{}{
				"term": map[string]interface{}{field: v},
			})
		default:
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("unsupported filter value for field %s: %T", field, value))
		}
	}
	return clauses, nil
}

func buildRange(field string, bounds map[string]interface{}) (map[string]interface{}, error) {
	rangeBody := map[string]interface{}{}
	for key, bound := range bounds {
		switch key {
		case "min", "gte":
			rangeBody["gte"] = bound
		case "max", "lte":
			rangeBody["lte"] = bound
		case "gt", "lt":
			rangeBody[key] = bound
		default:
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("unsupported range bound %q for field %s", key, field))
		}
	}
	if len(rangeBody) == 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("empty range filter for field %s", field))
	}
	return map[string]interface{}{
		"range": map[string]interface{}{field: rangeBody},
	}, nil
}

func buildSort(sorting []entities.SortField) ([]interface{}, error) {
	if len(sorting) == 0 {
		return []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"suggest.weight": map[string]interface{}{"order": "desc", "unmapped_type": "integer"}},
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		}, nil
	}

	sort := make([]interface{}, 0, len(sorting))
	for _, field := range sorting {
		order := field.Order
		if order == "" {
			order = "asc"
		}
		if order != "asc" && order != "desc" {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("invalid sort order %q for field %s", field.Order, field.Field))
		}
		if field.Field == "" {
			return nil, apperrors.NewValidationError("sort field must not be empty")
		}
		sort = append(sort, map[string]interface{}{
			field.Field: map[string]interface{}{"order": order},
		})
	}
	return sort, nil
}

func buildHighlight(h *entities.HighlightRequest) map[string]interface{} {
	preTag := h.PreTag
	if preTag == "" {
		preTag = defaultHighlightPreTag
	}
	postTag := h.PostTag
	if postTag == "" {
		postTag = defaultHighlightPostTag
	}

	fields := map[string]interface{}{}
	for _, field := range h.Fields {
		fields[field] = map[string]interface{}{}
	}
	return map[string]interface{}{
		"pre_tags":  []string{preTag},
		"post_tags": []string{postTag},
		"fields":    fields,
	}
}

func resolveWindow(p entities.PaginationRequest) (from, size int) {
	size = p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	switch {
	case p.Page > 0:
		from = (p.Page - 1) * size
	case p.From > 0:
		from = p.From
	}
	return from, size
}
