package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/discovery"
)

var listFlag bool

var knownProviders = []string{"openai", "anthropic", "google", "xai", "deepseek", "ollama"}

// modelLister is the part of discovery.Lister configure uses
type modelLister interface {
	Models(ctx context.Context, provider string) ([]string, error)
}

// maxSuggestions caps how many discovered models are offered by number
const maxSuggestions = 25

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure model providers",
	Long:  `Configure a provider, its API key and the models the wizard may use for inference.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetEnvPath()
		env, err := config.LoadOrDefault(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listFlag {
			listConfiguration(out, env, path)
			return nil
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		if err := configureProvider(cmd.Context(), reader, out, env, discovery.New(env)); err != nil {
			return err
		}
		if err := config.SaveEnvConfig(path, env); err != nil {
			return err
		}
		fmt.Fprintf(out, "Configuration saved successfully to %s!\n", path)
		return nil
	},
}

func ask(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// configureProvider asks for a provider, its key and one model, and records
// them in env
func configureProvider(ctx context.Context, reader *bufio.Reader, out io.Writer, env *config.EnvConfig, lister modelLister) error {
	var provider string
	for {
		p, err := ask(reader, out, fmt.Sprintf("Enter provider (%s): ", strings.Join(knownProviders, "/")))
		if err != nil {
			return err
		}
		p = strings.ToLower(p)
		if contains(knownProviders, p) {
			provider = p
			break
		}
		fmt.Fprintf(out, "Invalid provider. Please enter one of: %s\n", strings.Join(knownProviders, ", "))
	}

	if _, exists := env.Providers[provider]; !exists {
		env.AddProvider(provider, config.Provider{Models: []config.Model{}})
	}
	if provider != "ollama" && env.APIKey(provider) == "" {
		key, err := ask(reader, out, "Enter API key: ")
		if err != nil {
			return err
		}
		if err := env.UpdateAPIKey(provider, key); err != nil {
			return err
		}
	}

	available, err := lister.Models(ctx, provider)
	if err != nil {
		fmt.Fprintln(out, warnStyle.render(fmt.Sprintf("Could not list %s models: %v", provider, err)))
	}
	suggestions := available
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(out, "Available %s models:\n", provider)
		for i, m := range suggestions {
			fmt.Fprintf(out, "  %2d. %s\n", i+1, m)
		}
	}

	var modelName string
	for {
		answer, err := ask(reader, out, "Enter model name or number: ")
		if err != nil {
			return err
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(suggestions) {
			answer = suggestions[n-1]
		}
		if answer == "" {
			fmt.Fprintln(out, "Model name cannot be empty")
			continue
		}
		if provider == "ollama" && len(available) > 0 && !contains(available, answer) {
			fmt.Fprintf(out, "Model '%s' is not available in ollama. Please pull it first using 'ollama pull %s'\n", answer, answer)
			continue
		}
		modelName = answer
		break
	}

	modelType := "external"
	if provider == "ollama" {
		modelType = "local"
	}
	if err := env.AddModelToProvider(provider, config.Model{Name: modelName, Type: modelType}); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added %s model %s\n", provider, modelName)
	return nil
}

func listConfiguration(out io.Writer, env *config.EnvConfig, path string) {
	if len(env.Providers) == 0 {
		fmt.Fprintf(out, "No providers configured in %s\n", path)
		return
	}
	fmt.Fprintf(out, "Configuration from %s:\n\n", path)
	names := make([]string, 0, len(env.Providers))
	for name := range env.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable("Provider", "Model", "Type", "API Key")
	for _, name := range names {
		p := env.Providers[name]
		if p == nil {
			continue
		}
		key := "not set"
		if env.APIKey(name) != "" {
			key = "set"
		}
		if name == "ollama" {
			key = "-"
		}
		if len(p.Models) == 0 {
			t.Row(name, subtleStyle.render("(none)"), "", key)
			continue
		}
		for _, m := range p.Models {
			t.Row(name, m.Name, m.Type, key)
		}
	}
	fmt.Fprintln(out, t.Render())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func init() {
	configureCmd.Flags().BoolVar(&listFlag, "list", false, "List all configured providers and models")
	rootCmd.AddCommand(configureCmd)
}
