package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases and trims", input: "  JavaScript Basics  ", want: "javascript basics"},
		{name: "strips punctuation", input: `"advanced" C++ / Go!`, want: "advanced c go"},
		{name: "collapses whitespace", input: "react   hooks\t tutorial", want: "react hooks tutorial"},
		{name: "empty input", input: "", want: ""},
		{name: "only punctuation", input: "?!...", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.input))
		})
	}
}

func TestDedupeTags(t *testing.T) {
	tags := DedupeTags([]string{"Go", "go ", "", "Python", "go"}, 0)
	assert.Equal(t, []string{"go", "python"}, tags)

	capped := DedupeTags([]string{"a", "b", "c"}, 2)
	assert.Len(t, capped, 2)
}
