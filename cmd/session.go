package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var showJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Create, inspect and delete wizard sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.engine.Start(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, s.ID)
		fmt.Fprintln(cmd.ErrOrStderr(), subtleStyle.render("export SUMMAPROMPT_SESSION="+s.ID))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where the session is and what it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if showJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			renderSession(cmd.OutOrStdout(), s, a.engine.Config().MaxIterations)
			return nil
		})
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"reset"},
	Short:   "Delete the session and everything it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			if err := a.engine.Reset(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
			return nil
		})
	},
}

func init() {
	sessionShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the raw session record")
	sessionCmd.AddCommand(sessionNewCmd, sessionShowCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
