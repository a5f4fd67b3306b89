package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Netflix", "netflix"},
		{"strips punctuation", "NETFLIX.COM", "netflix com"},
		{"collapses whitespace", "  AT&T   Wireless  ", "at t wireless"},
		{"keeps digits", "T-Mobile 4G", "t mobile 4g"},
		{"empty", "", ""},
		{"only punctuation", "***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("netflix", "netflix"))
}

func TestSimilarity_TokenContainment(t *testing.T) {
	// Bill name tokens all appear in the transaction descriptor
	assert.Equal(t, 1.0, Similarity("netflix com", "netflix"))
	assert.Equal(t, 1.0, Similarity("spotify", "spotify usa"))
}

func TestSimilarity_EditDistance(t *testing.T) {
	// One character off in a seven character name
	score := Similarity("netflix", "netflux")
	assert.InDelta(t, 1.0-1.0/7.0, score, 0.001)
}

func TestSimilarity_Unrelated(t *testing.T) {
	assert.Less(t, Similarity("shell oil", "gym membership"), 0.5)
}

func TestSimilarity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", "netflix"))
	assert.Equal(t, 0.0, Similarity("netflix", ""))
}
