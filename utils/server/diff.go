package server

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffSegment is a run of words that is unchanged, inserted or deleted
type DiffSegment struct {
	Op   string `json:"op"` // equal, insert, delete
	Text string `json:"text"`
}

// WordDiff compares two prompts word by word. A replacement is reported as
// a delete followed by an insert.
func WordDiff(before, after string) []DiffSegment {
	a := strings.Fields(before)
	b := strings.Fields(after)
	m := difflib.NewMatcher(a, b)

	var segments []DiffSegment
	add := func(op string, words []string) {
		if len(words) == 0 {
			return
		}
		text := strings.Join(words, " ")
		if n := len(segments); n > 0 && segments[n-1].Op == op {
			segments[n-1].Text += " " + text
			return
		}
		segments = append(segments, DiffSegment{Op: op, Text: text})
	}
	for _, oc := range m.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			add("equal", a[oc.I1:oc.I2])
		case 'd':
			add("delete", a[oc.I1:oc.I2])
		case 'i':
			add("insert", b[oc.J1:oc.J2])
		case 'r':
			add("delete", a[oc.I1:oc.I2])
			add("insert", b[oc.J1:oc.J2])
		}
	}
	return segments
}

// DiffStats summarizes how far a candidate moved from the active prompt
type DiffStats struct {
	Changes    int     `json:"changes"`
	Similarity float64 `json:"similarity"`
	WordsAdded int     `json:"words_added"`
	WordsGone  int     `json:"words_removed"`
}

// CompareWords counts changed regions and words between two prompts.
// Similarity is difflib's ratio over the word sequences, 1 for identical.
func CompareWords(before, after string) DiffStats {
	a := strings.Fields(before)
	b := strings.Fields(after)
	m := difflib.NewMatcher(a, b)

	var st DiffStats
	for _, oc := range m.GetOpCodes() {
		if oc.Tag == 'e' {
			continue
		}
		st.Changes++
		st.WordsGone += oc.I2 - oc.I1
		st.WordsAdded += oc.J2 - oc.J1
	}
	st.Similarity = m.Ratio()
	if len(a) == 0 && len(b) == 0 {
		st.Similarity = 1
	}
	return st
}

// UnifiedDiff renders a line-based unified diff of two prompts
func UnifiedDiff(before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "active_prompt",
		ToFile:   "candidate_prompt",
		Context:  2,
	})
}
