// Package matcher maps free-form type labels produced by a model onto the
// session's summary type keys.
package matcher

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// DefaultThreshold is the minimum similarity (0..1) for a fuzzy match
const DefaultThreshold = 0.75

// Matcher resolves labels against a fixed list of summary types
type Matcher struct {
	types     []session.SummaryType
	threshold float64
}

// New returns a matcher over types using DefaultThreshold
func New(types []session.SummaryType) *Matcher {
	return &Matcher{types: types, threshold: DefaultThreshold}
}

// WithThreshold returns a copy using a different similarity threshold
func (m *Matcher) WithThreshold(threshold float64) *Matcher {
	clone := *m
	clone.threshold = threshold
	return &clone
}

// Match returns the key of the type label refers to, or nil. Exact keys win,
// then normalized keys and display names, then the most similar key or name
// at or above the threshold.
func (m *Matcher) Match(label string) *string {
	label = strings.TrimSpace(label)
	if label == "" || len(m.types) == 0 {
		return nil
	}

	for _, t := range m.types {
		if t.Key == label {
			return session.StringPtr(t.Key)
		}
	}

	norm := Normalize(label)
	for _, t := range m.types {
		if Normalize(t.Key) == norm || Normalize(t.Name) == norm {
			return session.StringPtr(t.Key)
		}
	}

	bestKey := ""
	best := 0.0
	for _, t := range m.types {
		for _, candidate := range []string{t.Key, t.Name} {
			score := Similarity(norm, Normalize(candidate))
			if score > best {
				best = score
				bestKey = t.Key
			}
		}
	}
	if best >= m.threshold {
		return session.StringPtr(bestKey)
	}
	return nil
}

// Has reports whether key is one of the known type keys
func (m *Matcher) Has(key string) bool {
	for _, t := range m.types {
		if t.Key == key {
			return true
		}
	}
	return false
}

// Similarity is 1 minus the edit distance over the longer length
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Normalize lower-cases s and joins its words with underscores
func Normalize(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
