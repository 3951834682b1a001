package utils

import (
	"regexp"
	"strings"
)

var (
	punctPattern      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeQuery canonicalizes a raw search query for logging, suggestion
// matching, and aggregation: lowercase, punctuation stripped, whitespace
// collapsed.
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = punctPattern.ReplaceAllString(normalized, " ")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// NormalizeTag lowercases and trims a single tag value
func NormalizeTag(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// DedupeTags returns tags with duplicates (after normalization) and empty
// values removed, capped at limit when limit > 0.
func DedupeTags(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		if limit > 0 && len(out) >= limit {
			break
		}
		normalized := NormalizeTag(value)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
