// Package feedback merges user corrections into inference results and
// aggregates them into reports used for prompt iteration.
package feedback

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kris-hansen/summaprompt/utils/matcher"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// ErrInvalidFeedback is returned when a feedback entry cannot be applied
var ErrInvalidFeedback = errors.New("invalid feedback")

// EntryError describes the offending feedback entry
type EntryError struct {
	ItemIndex int
	Reason    string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("feedback for item %d: %s", e.ItemIndex, e.Reason)
}

func (e *EntryError) Is(target error) bool {
	return target == ErrInvalidFeedback
}

// Validate checks entries against the results they correct and returns them
// with one entry per index (the last one submitted wins), ordered by index.
// Empty original summaries are filled from the matching result.
func Validate(results []session.InferenceResult, entries []session.FeedbackEntry, types []session.SummaryType) ([]session.FeedbackEntry, error) {
	m := matcher.New(types)
	byIndex := make(map[int]session.FeedbackEntry, len(entries))
	for _, e := range entries {
		if e.ItemIndex < 0 || e.ItemIndex >= len(results) {
			return nil, &EntryError{ItemIndex: e.ItemIndex, Reason: fmt.Sprintf("index out of range [0,%d)", len(results))}
		}
		if e.CorrectedTypeKey != nil && !m.Has(*e.CorrectedTypeKey) {
			return nil, &EntryError{ItemIndex: e.ItemIndex, Reason: fmt.Sprintf("unknown summary type %q", *e.CorrectedTypeKey)}
		}
		if e.OriginalSummary == "" {
			e.OriginalSummary = results[e.ItemIndex].SummaryText
		}
		byIndex[e.ItemIndex] = e
	}

	out := make([]session.FeedbackEntry, 0, len(byIndex))
	for _, e := range byIndex {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemIndex < out[j].ItemIndex })
	return out, nil
}

// Corrections returns the entries that change a summary or its type
func Corrections(entries []session.FeedbackEntry) []session.FeedbackEntry {
	var out []session.FeedbackEntry
	for _, e := range entries {
		if e.IsCorrection() {
			out = append(out, e)
		}
	}
	return out
}

// Merge applies feedback to results and aggregates per-type counts. It is a
// pure function of its inputs: the same inputs always give equal output.
func Merge(results []session.InferenceResult, entries []session.FeedbackEntry, types []session.SummaryType, items []session.ResponseItem) session.FinalResults {
	m := matcher.New(types)

	byIndex := make(map[int]session.FeedbackEntry, len(entries))
	for _, e := range entries {
		if e.ItemIndex >= 0 && e.ItemIndex < len(results) {
			byIndex[e.ItemIndex] = e
		}
	}

	final := session.FinalResults{
		Total:      len(results),
		Items:      make([]session.FinalItem, len(results)),
		TypeCounts: make(map[string]int, len(types)),
	}
	for _, t := range types {
		final.TypeCounts[t.Key] = 0
	}

	for i, r := range results {
		item := session.FinalItem{
			ItemIndex:       i,
			ItemID:          r.ItemID,
			Summary:         r.SummaryText,
			TypeKey:         copyKey(r.MatchedTypeKey),
			OriginalSummary: r.SummaryText,
			OriginalTypeKey: copyKey(r.MatchedTypeKey),
			Error:           r.Error,
		}
		if i < len(items) {
			item.Text = items[i].Text
		}

		if e, ok := byIndex[i]; ok {
			item.Note = e.Note
			if e.IsCorrection() {
				item.Corrected = true
				final.Corrected++
			}
			if e.CorrectedSummary != nil {
				item.Summary = *e.CorrectedSummary
			}
			switch {
			case e.CorrectedTypeKey != nil:
				item.TypeKey = copyKey(e.CorrectedTypeKey)
			case e.CorrectedSummary != nil:
				if key := m.Match(*e.CorrectedSummary); key != nil {
					item.TypeKey = key
				}
			}
		}

		switch {
		case item.Error != "" && !item.Corrected:
			final.Errored++
		case item.TypeKey == nil || !m.Has(*item.TypeKey):
			final.Unmatched++
		default:
			final.TypeCounts[*item.TypeKey]++
		}
		final.Items[i] = item
	}

	final.Breakdown = breakdown(types, final.TypeCounts, final.Total)
	return final
}

func breakdown(types []session.SummaryType, counts map[string]int, total int) []session.TypeCount {
	out := make([]session.TypeCount, 0, len(types))
	for _, t := range types {
		tc := session.TypeCount{Key: t.Key, Name: t.Name, Count: counts[t.Key]}
		if total > 0 {
			tc.Percent = math.Round(float64(tc.Count)/float64(total)*1000) / 10
		}
		out = append(out, tc)
	}
	return out
}

func copyKey(k *string) *string {
	if k == nil {
		return nil
	}
	return session.StringPtr(*k)
}
