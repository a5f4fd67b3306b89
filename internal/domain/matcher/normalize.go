package matcher

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize lowercases a merchant name, strips punctuation, and collapses
// whitespace. "NETFLIX.COM" becomes "netflix com".
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			// Punctuation and whitespace both collapse to a single space
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// Similarity returns a [0,1] similarity between two normalized names.
//
// Token containment handles the common "NETFLIX.COM" vs "Netflix" shape,
// where every token of one name appears in the other. Otherwise the score
// falls back to a Levenshtein ratio over the full strings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	if tokensContained(a, b) || tokensContained(b, a) {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// tokensContained reports whether every token of inner appears as a token
// of outer.
func tokensContained(inner, outer string) bool {
	outerTokens := make(map[string]bool)
	for _, tok := range strings.Fields(outer) {
		outerTokens[tok] = true
	}

	for _, tok := range strings.Fields(inner) {
		if !outerTokens[tok] {
			return false
		}
	}
	return true
}
