package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/input"
	"github.com/kris-hansen/summaprompt/utils/session"
)

var (
	dataColumn   string
	dataIDColumn string
	previewRows  int
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Load and preview survey responses",
}

var dataLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load responses from a JSON, YAML, CSV or text file",
	Long: `Load responses into the session. JSON and YAML files may hold a list of
strings, a list of objects with a text, response, comment, feedback or answer
field, or an object with a "responses" list. CSV files use the --column
column, or the first column with one of those names. Empty and NA-like values
are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			res, err := input.NewLoader(a.env.Input).LoadFile(args[0], input.Options{
				Column:   dataColumn,
				IDColumn: dataIDColumn,
			})
			if err != nil {
				return err
			}
			if _, err := a.engine.SelectData(cmd.Context(), id, res.Items, args[0]); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d responses from %s", len(res.Items), args[0])
			if res.Column != "" {
				fmt.Fprintf(out, " (column %q)", res.Column)
			}
			fmt.Fprintln(out)
			if res.Dropped > 0 {
				fmt.Fprintln(out, subtleStyle.render(fmt.Sprintf("Dropped %d empty or NA responses", res.Dropped)))
			}
			if res.Sampled {
				fmt.Fprintln(out, warnStyle.render(fmt.Sprintf("Sampled %d of %d responses", len(res.Items), res.Total-res.Dropped)))
			}
			return nil
		})
	},
}

var dataShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Preview the loaded responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderItems(cmd, s.RawData)
			return nil
		})
	},
}

func renderItems(cmd *cobra.Command, items []session.ResponseItem) {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, subtleStyle.render("No responses loaded."))
		return
	}
	shown := items
	if previewRows > 0 && len(shown) > previewRows {
		shown = shown[:previewRows]
	}
	rows := make([][]string, len(shown))
	for i, item := range shown {
		rows[i] = []string{fmt.Sprint(i), item.Identifier, truncate(item.Text, 90)}
	}
	fmt.Fprintln(out, newTable("#", "ID", "Response").Rows(rows...).String())
	fmt.Fprintf(out, "%d responses\n", len(items))
}

func init() {
	dataLoadCmd.Flags().StringVar(&dataColumn, "column", "", "field or CSV column holding the response text")
	dataLoadCmd.Flags().StringVar(&dataIDColumn, "id-column", "", "field or CSV column holding the response identifier")
	dataShowCmd.Flags().IntVarP(&previewRows, "rows", "n", 10, "number of responses to show (0 for all)")
	dataCmd.AddCommand(dataLoadCmd, dataShowCmd)
	rootCmd.AddCommand(dataCmd)
}
