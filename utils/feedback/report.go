package feedback

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/session"
)

const (
	exampleTextLimit   = 100
	maxCommonExamples  = 2
	unmatchedLabel     = "unmatched"
	unchangedTypeLabel = "same type"
)

// Example is one correction quoted in a report
type Example struct {
	ItemIndex        int    `json:"item_index"`
	ResponseText     string `json:"response_text"`
	OriginalSummary  string `json:"original_summary"`
	CorrectedSummary string `json:"corrected_summary,omitempty"`
	OriginalType     string `json:"original_type"`
	CorrectedType    string `json:"corrected_type"`
	Note             string `json:"note,omitempty"`
}

// Pattern groups corrections that moved items between the same two types
type Pattern struct {
	Pattern  string    `json:"pattern"`
	Count    int       `json:"count"`
	Examples []Example `json:"examples"`
}

// Report aggregates corrections so a prompt revision can target them
type Report struct {
	TotalCorrections int                       `json:"total_corrections"`
	SummaryEdits     int                       `json:"summary_edits"`
	TypeChanges      int                       `json:"type_changes"`
	Patterns         []Pattern                 `json:"patterns"`
	Confusion        map[string]map[string]int `json:"confusion_matrix"`
	CommonErrors     []Pattern                 `json:"common_errors"`
	Examples         []Example                 `json:"examples"`
}

// BuildReport groups the corrections among entries by "original → corrected"
// type pattern. Confirmations (entries without a correction) are skipped.
func BuildReport(results []session.InferenceResult, entries []session.FeedbackEntry, types []session.SummaryType, items []session.ResponseItem) Report {
	names := make(map[string]string, len(types))
	for _, t := range types {
		names[t.Key] = t.Name
	}
	label := func(key *string) string {
		if key == nil {
			return unmatchedLabel
		}
		if name, ok := names[*key]; ok {
			return name
		}
		return *key
	}

	report := Report{Confusion: map[string]map[string]int{}}
	byPattern := map[string]*Pattern{}
	var order []string

	for _, e := range entries {
		if !e.IsCorrection() || e.ItemIndex < 0 || e.ItemIndex >= len(results) {
			continue
		}
		r := results[e.ItemIndex]
		report.TotalCorrections++

		original := label(r.MatchedTypeKey)
		corrected := original
		if e.CorrectedTypeKey != nil {
			corrected = label(e.CorrectedTypeKey)
			if corrected != original {
				report.TypeChanges++
			}
		}
		if e.CorrectedSummary != nil {
			report.SummaryEdits++
		}

		ex := Example{
			ItemIndex:       e.ItemIndex,
			OriginalSummary: r.SummaryText,
			OriginalType:    original,
			CorrectedType:   corrected,
			Note:            e.Note,
		}
		if e.CorrectedSummary != nil {
			ex.CorrectedSummary = *e.CorrectedSummary
		}
		if e.ItemIndex < len(items) {
			ex.ResponseText = truncate(items[e.ItemIndex].Text, exampleTextLimit)
		}
		report.Examples = append(report.Examples, ex)

		key := fmt.Sprintf("%s → %s", original, corrected)
		if corrected == original {
			key = fmt.Sprintf("%s (%s, summary edited)", original, unchangedTypeLabel)
		}
		p, ok := byPattern[key]
		if !ok {
			p = &Pattern{Pattern: key}
			byPattern[key] = p
			order = append(order, key)
		}
		p.Count++
		p.Examples = append(p.Examples, ex)

		if report.Confusion[original] == nil {
			report.Confusion[original] = map[string]int{}
		}
		report.Confusion[original][corrected]++
	}

	for _, key := range order {
		p := byPattern[key]
		report.Patterns = append(report.Patterns, *p)
		if p.Count > 1 {
			common := Pattern{Pattern: p.Pattern, Count: p.Count, Examples: p.Examples}
			if len(common.Examples) > maxCommonExamples {
				common.Examples = common.Examples[:maxCommonExamples]
			}
			report.CommonErrors = append(report.CommonErrors, common)
		}
	}
	sort.SliceStable(report.CommonErrors, func(i, j int) bool {
		return report.CommonErrors[i].Count > report.CommonErrors[j].Count
	})
	return report
}

// Empty reports whether the report holds no corrections
func (r Report) Empty() bool {
	return r.TotalCorrections == 0
}

// JSON returns the report encoded for storage alongside an iteration candidate
func (r Report) JSON() json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}

// Text renders the report as the plain-text context given to the model
// when revising a prompt.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TOTAL CORRECTIONS: %d (%d summary edits, %d type changes)\n", r.TotalCorrections, r.SummaryEdits, r.TypeChanges)

	if len(r.CommonErrors) > 0 {
		b.WriteString("\nCOMMON MISCLASSIFICATION PATTERNS:\n")
		for _, p := range r.CommonErrors {
			fmt.Fprintf(&b, "- %s (occurred %d times)\n", p.Pattern, p.Count)
		}
	}

	b.WriteString("\nCORRECTION PATTERNS:\n")
	for _, p := range r.Patterns {
		fmt.Fprintf(&b, "- %s: %d\n", p.Pattern, p.Count)
	}

	b.WriteString("\nSPECIFIC CORRECTION EXAMPLES:\n")
	for _, ex := range r.Examples {
		if ex.ResponseText != "" {
			fmt.Fprintf(&b, "- Response: %q\n", ex.ResponseText)
		} else {
			fmt.Fprintf(&b, "- Item %d\n", ex.ItemIndex)
		}
		fmt.Fprintf(&b, "  Model summary: %q (%s)\n", ex.OriginalSummary, ex.OriginalType)
		if ex.CorrectedSummary != "" {
			fmt.Fprintf(&b, "  Corrected summary: %q (%s)\n", ex.CorrectedSummary, ex.CorrectedType)
		} else {
			fmt.Fprintf(&b, "  Corrected type: %s\n", ex.CorrectedType)
		}
		if ex.Note != "" {
			fmt.Fprintf(&b, "  User note: %q\n", ex.Note)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChangeSummary is a deterministic description of what a revision addresses,
// used when the model does not supply one.
func (r Report) ChangeSummary() string {
	if r.Empty() {
		return "No corrections to address."
	}
	parts := []string{fmt.Sprintf("Revised to address %d correction(s)", r.TotalCorrections)}
	top := r.CommonErrors
	if len(top) == 0 {
		top = r.Patterns
	}
	if len(top) > 3 {
		top = top[:3]
	}
	var pats []string
	for _, p := range top {
		pats = append(pats, p.Pattern)
	}
	if len(pats) > 0 {
		parts = append(parts, "including "+strings.Join(pats, "; "))
	}
	return strings.Join(parts, ", ") + "."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
