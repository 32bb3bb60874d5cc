package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kris-hansen/summaprompt/utils/session"
)

var (
	feedbackSummary string
	feedbackType    string
	feedbackNote    string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Correct or confirm inference results",
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <index>",
	Short: "Correct the summary or type of one response",
	Long: `Record feedback for the response at <index>. Pass --summary and/or
--type to correct it; with neither the result is recorded as confirmed.
Feedback for an index replaces any earlier feedback for it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		entry := session.FeedbackEntry{ItemIndex: index, Note: feedbackNote}
		if cmd.Flags().Changed("summary") {
			entry.CorrectedSummary = session.StringPtr(feedbackSummary)
		}
		if cmd.Flags().Changed("type") {
			entry.CorrectedTypeKey = session.StringPtr(feedbackType)
		}
		return submitFeedback(cmd, []session.FeedbackEntry{entry})
	},
}

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Submit a JSON or YAML list of feedback entries (- for stdin)",
	Long: `Submit several feedback entries at once. Each entry has item_index and
optionally corrected_summary, corrected_type_key and note.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readArg(cmd, args[0])
		if err != nil {
			return err
		}
		entries, err := parseFeedbackFile(data)
		if err != nil {
			return err
		}
		return submitFeedback(cmd, entries)
	},
}

var feedbackReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show how corrections moved responses between types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			report, err := a.engine.FeedbackReport(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.Empty() {
				fmt.Fprintln(out, subtleStyle.render("No corrections yet."))
				return nil
			}
			fmt.Fprintln(out, titleStyle.render(fmt.Sprintf("%d corrections: %d type changes, %d summary edits",
				report.TotalCorrections, report.TypeChanges, report.SummaryEdits)))
			t := newTable("Pattern", "Count")
			for _, p := range report.Patterns {
				t.Row(p.Pattern, strconv.Itoa(p.Count))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		})
	},
}

func submitFeedback(cmd *cobra.Command, entries []session.FeedbackEntry) error {
	return withSession(func(a *app, id string) error {
		s, err := a.engine.SubmitFeedback(cmd.Context(), id, entries)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recorded %d feedback entries (%d total)\n", len(entries), len(s.FeedbackEntries))
		if s.FinalResults != nil {
			renderFinal(out, s.FinalResults)
		}
		return nil
	})
}

func parseFeedbackFile(data []byte) ([]session.FeedbackEntry, error) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, "[") && !strings.HasPrefix(text, "{") {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing feedback: %w", err)
		}
		var b strings.Builder
		if err := nodeJSON(&b, &doc); err != nil {
			return nil, fmt.Errorf("error parsing feedback: %w", err)
		}
		text = b.String()
	}

	var entries []session.FeedbackEntry
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Entries []session.FeedbackEntry `json:"entries"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("error parsing feedback: %w", err)
		}
		entries = wrapped.Entries
	} else if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("error parsing feedback: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no feedback entries found")
	}
	return entries, nil
}

func init() {
	feedbackAddCmd.Flags().StringVar(&feedbackSummary, "summary", "", "corrected summary")
	feedbackAddCmd.Flags().StringVar(&feedbackType, "type", "", "corrected summary type key")
	feedbackAddCmd.Flags().StringVar(&feedbackNote, "note", "", "note explaining the correction")
	feedbackCmd.AddCommand(feedbackAddCmd, feedbackSubmitCmd, feedbackReportCmd)
	rootCmd.AddCommand(feedbackCmd)
}
