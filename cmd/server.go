package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/config"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage HTTP server settings",
}

var showServerCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current server configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadOrDefault(config.GetEnvPath())
		if err != nil {
			return err
		}
		showServer(cmd.OutOrStdout(), env.GetServerConfig())
		return nil
	},
}

func showServer(w io.Writer, s *config.ServerConfig) {
	fmt.Fprintln(w, titleStyle.render("Server Configuration"))
	fmt.Fprintf(w, "Port: %d\n", s.Port)
	fmt.Fprintf(w, "Authentication Enabled: %v\n", s.Enabled)
	if s.BearerToken != "" {
		fmt.Fprintf(w, "Bearer Token: %s\n", s.BearerToken)
	}
	fmt.Fprintf(w, "CORS Enabled: %v\n", s.CORS.Enabled)
	if s.CORS.Enabled {
		fmt.Fprintf(w, "Allowed Origins: %s\n", strings.Join(s.CORS.AllowedOrigins, ", "))
	}
}

// updateServer loads the env file, applies fn to its server settings and
// saves it back
func updateServer(fn func(s *config.ServerConfig) error) error {
	path := config.GetEnvPath()
	env, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	s := env.GetServerConfig()
	if err := fn(s); err != nil {
		return err
	}
	env.UpdateServerConfig(*s)
	return config.SaveEnvConfig(path, env)
}

var updatePortCmd = &cobra.Command{
	Use:   "port <port>",
	Short: "Update server port",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port number: %s", args[0])
		}
		if err := updateServer(func(s *config.ServerConfig) error {
			s.Port = port
			return nil
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server port updated to %d\n", port)
		return nil
	},
}

var toggleAuthCmd = &cobra.Command{
	Use:       "auth <on|off>",
	Short:     "Toggle bearer token authentication",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enable := strings.ToLower(args[0])
		if enable != "on" && enable != "off" {
			return fmt.Errorf("specify either 'on' or 'off'")
		}
		out := cmd.OutOrStdout()
		return updateServer(func(s *config.ServerConfig) error {
			s.Enabled = enable == "on"
			if s.Enabled && s.BearerToken == "" {
				token, err := config.GenerateBearerToken()
				if err != nil {
					return err
				}
				s.BearerToken = token
				fmt.Fprintf(out, "Generated new bearer token: %s\n", token)
			}
			fmt.Fprintf(out, "Server authentication %s\n", map[bool]string{true: "enabled", false: "disabled"}[s.Enabled])
			return nil
		})
	},
}

var newTokenCmd = &cobra.Command{
	Use:   "newtoken",
	Short: "Generate a new bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateServer(func(s *config.ServerConfig) error {
			token, err := config.GenerateBearerToken()
			if err != nil {
				return err
			}
			s.BearerToken = token
			fmt.Fprintf(cmd.OutOrStdout(), "Generated new bearer token: %s\n", token)
			return nil
		})
	},
}

var corsCmd = &cobra.Command{
	Use:   "cors <on|off> [origin...]",
	Short: "Toggle CORS and set the allowed origins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enable := strings.ToLower(args[0])
		if enable != "on" && enable != "off" {
			return fmt.Errorf("specify either 'on' or 'off'")
		}
		return updateServer(func(s *config.ServerConfig) error {
			s.CORS.Enabled = enable == "on"
			if len(args) > 1 {
				s.CORS.AllowedOrigins = args[1:]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CORS %s\n", map[bool]string{true: "enabled", false: "disabled"}[s.CORS.Enabled])
			return nil
		})
	},
}

func init() {
	serverCmd.AddCommand(showServerCmd, updatePortCmd, toggleAuthCmd, newTokenCmd, corsCmd)
	rootCmd.AddCommand(serverCmd)
}
