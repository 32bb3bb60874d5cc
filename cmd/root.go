package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/config"
)

var (
	verbose   bool
	debug     bool
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "summaprompt",
	Short: "Build survey summarization prompts step by step",
	Long: `summaprompt walks you from a file of survey responses to a tested
instruction prompt: describe what you care about, review the generated
summary types and prompt, run it over every response, correct the results
and let the corrections drive a revised prompt.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Verbose = verbose
		config.Debug = debug
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "session ID (default $SUMMAPROMPT_SESSION)")
}

func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.render("Error: ")+err.Error())
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, subtleStyle.render(hint))
		}
		os.Exit(1)
	}
}
