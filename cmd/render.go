package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

// styled is true when stdout is a terminal; piped output stays plain
var styled = term.IsTerminal(int(os.Stdout.Fd()))

type style struct {
	lipgloss.Style
}

func (s style) render(text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

var (
	titleStyle   = style{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))}
	labelStyle   = style{lipgloss.NewStyle().Bold(true)}
	currentStyle = style{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))}
	doneStyle    = style{lipgloss.NewStyle().Foreground(lipgloss.Color("8"))}
	warnStyle    = style{lipgloss.NewStyle().Foreground(lipgloss.Color("11"))}
	errorStyle   = style{lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))}
	subtleStyle  = style{lipgloss.NewStyle().Faint(true)}
	boxStyle     = style{lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)}
)

func renderSteps(w io.Writer, s *session.Session) {
	current := workflow.StepFromSession(s)
	for _, step := range workflow.Sequence {
		marker, line := "  ", string(step)
		switch {
		case step == current:
			marker, line = "> ", currentStyle.render(line)
		case step.Before(current):
			marker, line = "✓ ", doneStyle.render(line)
		}
		if s.Stale[string(step)] {
			line += " " + warnStyle.render("(stale)")
		}
		fmt.Fprintln(w, marker+line)
		if step == workflow.StepCollectFeedback && current == workflow.StepIteratePrompt {
			fmt.Fprintln(w, "  > "+currentStyle.render(string(workflow.StepIteratePrompt)))
		}
	}
	if current == workflow.StepExport {
		fmt.Fprintln(w, "> "+currentStyle.render(string(workflow.StepExport)))
	}
}

func renderSession(w io.Writer, s *session.Session, maxIterations int) {
	fmt.Fprintln(w, titleStyle.render("Session "+s.ID))
	renderSteps(w, s)
	fmt.Fprintln(w)

	field := func(label, value string) {
		if value == "" {
			value = subtleStyle.render("(none)")
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.render(label+":"), value)
	}
	data := strconv.Itoa(len(s.RawData)) + " responses"
	if s.DataSource != "" {
		data += " from " + s.DataSource
	}
	field("Data", data)
	field("Criteria", s.CriteriaDescription)
	field("Summary types", strconv.Itoa(len(s.SummaryTypes)))
	field("Model", s.SelectedInferenceModel)
	field("Iterations", fmt.Sprintf("%d of %d", s.IterationCount, maxIterations))
	if s.InferenceReport != nil {
		renderRunReport(w, s.InferenceReport)
	}
	if s.FinalResults != nil {
		field("Corrections", strconv.Itoa(s.FinalResults.Corrected))
	}
	for _, n := range s.GenerationNotes {
		if n.Fallback {
			fmt.Fprintln(w, warnStyle.render(fmt.Sprintf("note: %s used the built-in fallback (%s)", n.Step, n.Reason)))
		}
	}
	if s.ActivePrompt != "" {
		fmt.Fprintln(w)
		renderPrompt(w, "Active prompt", s.ActivePrompt)
	}
}

func renderPrompt(w io.Writer, title, prompt string) {
	fmt.Fprintln(w, labelStyle.render(title))
	fmt.Fprintln(w, boxStyle.render(prompt))
}

func renderTypes(w io.Writer, types []session.SummaryType) {
	if len(types) == 0 {
		fmt.Fprintln(w, subtleStyle.render("No summary types yet."))
		return
	}
	rows := make([][]string, len(types))
	for i, t := range types {
		rows[i] = []string{t.Key, t.Name, t.Description}
	}
	fmt.Fprintln(w, newTable("Key", "Name", "Description").Rows(rows...).String())
}

func renderRunReport(w io.Writer, r *session.RunReport) {
	line := fmt.Sprintf("%d batches with %s, %d errored, %d unmatched", r.Batches, r.Model, r.Errored, r.Unmatched)
	if r.Errored > 0 || r.FailedCalls > 0 {
		line = warnStyle.render(line)
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.render("Last run:"), line)
	for _, note := range r.FailureNotes {
		fmt.Fprintln(w, "  "+subtleStyle.render(note))
	}
}

// renderResults lists inference results, at most limit rows when limit > 0
func renderResults(w io.Writer, s *session.Session, limit int) {
	results := s.InferenceResults
	if len(results) == 0 {
		fmt.Fprintln(w, subtleStyle.render("No results yet."))
		return
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		typ := "-"
		if r.MatchedTypeKey != nil {
			typ = *r.MatchedTypeKey
		}
		summary := r.SummaryText
		if r.Failed() {
			summary = "[" + r.Error + "]"
		}
		rows = append(rows, []string{strconv.Itoa(r.ItemIndex), r.ItemID, typ, truncate(summary, 80)})
	}
	fmt.Fprintln(w, newTable("#", "ID", "Type", "Summary").Rows(rows...).String())
	if len(results) < len(s.InferenceResults) {
		fmt.Fprintln(w, subtleStyle.render(fmt.Sprintf("... %d more", len(s.InferenceResults)-len(results))))
	}
}

func renderFinal(w io.Writer, final *session.FinalResults) {
	fmt.Fprintln(w, titleStyle.render(fmt.Sprintf("Final results: %d responses, %d corrected", final.Total, final.Corrected)))
	for _, tc := range final.Breakdown {
		bar := strings.Repeat("#", int(tc.Percent/5))
		fmt.Fprintf(w, "  %-20s %4d  %5.1f%%  %s\n", tc.Name, tc.Count, tc.Percent, bar)
	}
	if final.Unmatched > 0 {
		fmt.Fprintf(w, "  %-20s %4d\n", "Unmatched", final.Unmatched)
	}
	if final.Errored > 0 {
		fmt.Fprintln(w, warnStyle.render(fmt.Sprintf("  %d responses have no summary", final.Errored)))
	}
}

func newTable(headers ...string) *table.Table {
	t := table.New().Border(lipgloss.NormalBorder()).Headers(headers...)
	if styled {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return labelStyle.Style
			}
			return lipgloss.NewStyle()
		})
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}

// errorHint suggests how to recover from common failures
func errorHint(err error) string {
	var gwErr *gateway.Error
	var pre *workflow.PreconditionError
	switch {
	case errors.As(err, &gwErr):
		return gwErr.RetryHint()
	case errors.As(err, &pre):
		return "complete the earlier steps first; 'summaprompt session show' lists where the session is"
	case errors.Is(err, workflow.ErrNotAtStep):
		return "use 'summaprompt advance' or 'summaprompt back <step>' to move the session"
	case errors.Is(err, errNoSession):
		return "create one with 'summaprompt session new'"
	}
	return ""
}
