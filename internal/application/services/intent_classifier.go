package services

import (
	"strings"

	"github.com/learnlane/coursesearch/internal/domain/entities"
)

var (
	learningMarkers = []string{"how to", "learn", "tutorial", "course on", "beginner", "introduction to", "getting started"}
	researchMarkers = []string{"compare", " vs ", " vs.", "versus", "difference between", "best ", "review", "alternative"}
)

const specificQueryLength = 50

// ClassifyIntent buckets a raw query into one of the four intent categories.
// Total over all inputs: every query lands in exactly one bucket, with
// precedence learning > research > specific > browsing.
func ClassifyIntent(query string) entities.SearchIntent {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return entities.IntentBrowsing
	}

	lower := " " + strings.ToLower(trimmed) + " "
	for _, marker := range learningMarkers {
		if strings.Contains(lower, marker) {
			return entities.IntentLearning
		}
	}
	for _, marker := range researchMarkers {
		if strings.Contains(lower, marker) {
			return entities.IntentResearch
		}
	}

	quoted := len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`)
	if quoted || len(trimmed) > specificQueryLength {
		return entities.IntentSpecific
	}
	return entities.IntentBrowsing
}
