package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard HTTP API",
	Long:  `Start an HTTP server exposing the wizard steps, inference progress (SSE) and export.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return server.Run(a.env, a.engine)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
