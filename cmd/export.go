package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kris-hansen/summaprompt/utils/workflow"
)

var (
	exportFormat string
	exportOutput string
	exportPrompt bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the final instruction prompt",
	Long: `Export the approved instruction prompt with its criteria, summary types
and model. Only available once the session has reached final_results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)
		if format == "yml" {
			format = "yaml"
		}
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported export format %q (use json or yaml)", exportFormat)
		}
		return withSession(func(a *app, id string) error {
			record, err := a.engine.Export(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exportOutput != "" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return fmt.Errorf("error creating export file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeExport(out, record, format, exportPrompt); err != nil {
				return err
			}
			if exportOutput != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", exportOutput)
			}
			return nil
		})
	},
}

func writeExport(w io.Writer, record *workflow.ExportRecord, format string, promptOnly bool) error {
	if promptOnly {
		_, err := fmt.Fprintln(w, record.Instruction)
		return err
	}
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("error encoding export: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format (json or yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	exportCmd.Flags().BoolVar(&exportPrompt, "prompt-only", false, "write only the instruction text")
	rootCmd.AddCommand(exportCmd)
}
