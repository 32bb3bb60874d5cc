package cmd

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/progress"
	"github.com/kris-hansen/summaprompt/utils/session"
)

var (
	inferModel string
	resultsAll bool
)

// runWithSpinner shows a spinner on stderr while fn runs
func runWithSpinner(cmd *cobra.Command, message string, fn func() (*session.Session, error)) (*session.Session, error) {
	spinner := newSpinner(cmd)
	spinner.Start(message)
	defer spinner.Stop()
	return fn()
}

func newSpinner(cmd *cobra.Command) *progress.Spinner {
	spinner := progress.NewSpinner()
	spinner.SetOutput(cmd.ErrOrStderr())
	if !styled || verbose || debug {
		spinner.Disable()
	}
	return spinner
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Summarize every response with the active prompt",
	Long: `Summarize every loaded response with the active prompt. Responses are sent
in batches; a failed batch marks its responses with an error instead of
stopping the run. Running again replaces the previous results and clears
any feedback.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			ctx := cmd.Context()
			if inferModel != "" {
				if _, err := a.engine.SelectModel(ctx, id, inferModel); err != nil {
					return err
				}
			}

			spinner := newSpinner(cmd)
			var done int32
			engine := a.engine.WithProgress(progress.FuncWriter(func(u progress.Update) error {
				switch u.Type {
				case progress.TypeBatchDone, progress.TypeBatchFailed:
					n := atomic.AddInt32(&done, 1)
					spinner.SetMessage(fmt.Sprintf("Summarizing responses (%d/%d batches)", n, u.Batches))
				}
				config.VerboseLog("[Infer] %s: %s", u.Kind, u.Message)
				return nil
			}))

			spinner.Start("Summarizing responses")
			s, err := engine.RunInference(ctx, id)
			spinner.Stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderRunReport(out, s.InferenceReport)
			renderResults(out, s, 10)
			fmt.Fprintln(out, subtleStyle.render("Run 'summaprompt advance' to review and correct the results."))
			return nil
		})
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show inference results, or the final breakdown once feedback is in",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			limit := 20
			if resultsAll {
				limit = 0
			}
			renderResults(out, s, limit)
			if s.FinalResults != nil {
				fmt.Fprintln(out)
				renderFinal(out, s.FinalResults)
			}
			return nil
		})
	},
}

func init() {
	inferCmd.Flags().StringVarP(&inferModel, "model", "m", "", "inference model (default from the env file)")
	resultsCmd.Flags().BoolVar(&resultsAll, "all", false, "show every result")
	rootCmd.AddCommand(inferCmd, resultsCmd)
}
