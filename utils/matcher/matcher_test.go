package matcher

import (
	"testing"

	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/stretchr/testify/assert"
)

var testTypes = []session.SummaryType{
	{Key: "themes", Name: "Key Themes", Description: "Recurring topics"},
	{Key: "sentiment", Name: "Sentiment", Description: "How the respondent feels"},
	{Key: "specific_issues", Name: "Specific Issues", Description: "Concrete problems"},
	{Key: "general", Name: "General", Description: "Anything else"},
}

func TestMatch(t *testing.T) {
	m := New(testTypes)

	tests := []struct {
		label string
		want  string // empty means no match
	}{
		{"themes", "themes"},
		{"Specific Issues", "specific_issues"},
		{"SPECIFIC-ISSUES", "specific_issues"},
		{"  key themes ", "themes"},
		{"sentimnt", "sentiment"},
		{"specific_issue", "specific_issues"},
		{"delivery", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := m.Match(tt.label)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, *got)
			}
		})
	}
}

func TestMatchThreshold(t *testing.T) {
	strict := New(testTypes).WithThreshold(1)
	assert.Nil(t, strict.Match("sentimnt"))
	assert.NotNil(t, strict.Match("sentiment"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "specific_issues", Normalize(" Specific Issues! "))
	assert.Equal(t, "a_b_c", Normalize("a--b  c"))
	assert.Equal(t, "", Normalize("  "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.InDelta(t, 0.5, Similarity("abcd", "abxy"), 0.001)
}

func TestHas(t *testing.T) {
	m := New(testTypes)
	assert.True(t, m.Has("general"))
	assert.False(t, m.Has("General"))
}
