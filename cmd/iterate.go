package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/server"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

var (
	insertStyle = style{lipgloss.NewStyle().Foreground(lipgloss.Color("10"))}
	deleteStyle = style{lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true)}
)

var iterateCmd = &cobra.Command{
	Use:   "iterate",
	Short: "Revise the prompt from your corrections",
}

var iterateRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Draft a revised prompt from the submitted corrections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := runWithSpinner(cmd, "Revising prompt", func() (*session.Session, error) {
				return a.engine.RequestIteration(cmd.Context(), id)
			})
			if err != nil {
				return err
			}
			renderCandidate(cmd.OutOrStdout(), s)
			fmt.Fprintln(cmd.OutOrStdout(), subtleStyle.render("Run 'summaprompt iterate approve' to adopt it or 'summaprompt iterate reject' to keep the current prompt."))
			return nil
		})
	},
}

var iterateDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show how the pending revision differs from the active prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if s.PendingIteration == nil {
				return workflow.ErrNoPendingIteration
			}
			renderCandidate(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

var iterateApproveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Adopt the pending revision and return to run_inference",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.ApproveIteration(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revision %d adopted. Now at %s; run 'summaprompt infer' to test it.\n",
				s.IterationCount, currentStyle.render(s.CurrentStep))
			return nil
		})
	},
}

var iterateRejectCmd = &cobra.Command{
	Use:   "reject",
	Short: "Discard the pending revision and keep the current prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.RejectIteration(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revision discarded. Now at %s\n", currentStyle.render(s.CurrentStep))
			return nil
		})
	},
}

func renderCandidate(w io.Writer, s *session.Session) {
	c := s.PendingIteration
	fmt.Fprintln(w, titleStyle.render("Proposed revision"))
	if c.Fallback {
		fmt.Fprintln(w, warnStyle.render("The model's answer could not be parsed; its raw text is shown as the revision."))
	}
	if c.ChangeSummary != "" {
		fmt.Fprintf(w, "%s %s\n\n", labelStyle.render("Changes:"), c.ChangeSummary)
	}
	fmt.Fprintln(w, renderWordDiff(server.WordDiff(s.ActivePrompt, c.Prompt)))
	st := server.CompareWords(s.ActivePrompt, c.Prompt)
	fmt.Fprintln(w, subtleStyle.render(fmt.Sprintf("\n%d changes, +%d/-%d words, %.0f%% similar",
		st.Changes, st.WordsAdded, st.WordsGone, st.Similarity*100)))
}

// renderWordDiff colours changes on a terminal and marks them with
// [-deleted-] and {+inserted+} otherwise
func renderWordDiff(segments []server.DiffSegment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		switch seg.Op {
		case "insert":
			if styled {
				parts[i] = insertStyle.render(seg.Text)
			} else {
				parts[i] = "{+" + seg.Text + "+}"
			}
		case "delete":
			if styled {
				parts[i] = deleteStyle.render(seg.Text)
			} else {
				parts[i] = "[-" + seg.Text + "-]"
			}
		default:
			parts[i] = seg.Text
		}
	}
	return strings.Join(parts, " ")
}

func init() {
	iterateCmd.AddCommand(iterateRequestCmd, iterateDiffCmd, iterateApproveCmd, iterateRejectCmd)
	rootCmd.AddCommand(iterateCmd)
}
