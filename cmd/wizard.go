package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kris-hansen/summaprompt/utils/fileutil"
	"github.com/kris-hansen/summaprompt/utils/generator"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

var advanceCmd = &cobra.Command{
	Use:   "advance",
	Short: "Move the session to the next step",
	Long: `Move the session to the next step. Entering generate_summary_types or
review_prompt generates the summary types or the prompt when they are
missing or out of date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Advance(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now at %s\n", currentStyle.render(s.CurrentStep))
			return nil
		})
	},
}

var backCmd = &cobra.Command{
	Use:   "back <step>",
	Short: "Return to an earlier step, keeping everything entered so far",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step, ok := workflow.ParseStep(args[0])
		if !ok {
			return fmt.Errorf("unknown step %q", args[0])
		}
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !step.Before(workflow.StepFromSession(s)) {
				return fmt.Errorf("%s is not before %s; use advance to move forward", step, s.CurrentStep)
			}
			if _, err := a.engine.GoTo(cmd.Context(), id, step); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now at %s\n", currentStyle.render(string(step)))
			return nil
		})
	},
}

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Describe what the summaries should focus on",
}

var criteriaSetCmd = &cobra.Command{
	Use:   "set <description>",
	Short: "Set the criteria description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.SetCriteria(cmd.Context(), id, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Criteria set: %s\n", s.CriteriaDescription)
			return nil
		})
	},
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Review and edit the summary types",
}

var typesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the summary types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderTypes(cmd.OutOrStdout(), s.SummaryTypes)
			return nil
		})
	},
}

var typesSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Replace the summary types with those in a JSON or YAML file",
	Long: `Replace the summary types. The file holds a list of {key, name,
description} records, or an object keyed by type key. A "general" catch-all
type is added when missing. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readArg(cmd, args[0])
		if err != nil {
			return err
		}
		types, err := parseTypesFile(data)
		if err != nil {
			return err
		}
		return withSession(func(a *app, id string) error {
			s, err := a.engine.UpdateSummaryTypes(cmd.Context(), id, types)
			if err != nil {
				return err
			}
			renderTypes(cmd.OutOrStdout(), s.SummaryTypes)
			return nil
		})
	},
}

var typesRegenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Generate a fresh set of summary types from the criteria",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := runWithSpinner(cmd, "Generating summary types", func() (*session.Session, error) {
				return a.engine.RegenerateSummaryTypes(cmd.Context(), id)
			})
			if err != nil {
				return err
			}
			renderTypes(cmd.OutOrStdout(), s.SummaryTypes)
			return nil
		})
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Review and edit the instruction prompt",
}

var promptShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active prompt and any pending revision",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := a.engine.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s.ActivePrompt == "" {
				fmt.Fprintln(out, subtleStyle.render("No prompt yet; advance to review_prompt to generate one."))
				return nil
			}
			renderPrompt(out, "Active prompt", s.ActivePrompt)
			if s.PendingIteration != nil {
				renderPrompt(out, "Pending revision", s.PendingIteration.Prompt)
			}
			return nil
		})
	},
}

var promptEditCmd = &cobra.Command{
	Use:   "edit <file>",
	Short: "Replace the active prompt with the contents of a file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readArg(cmd, args[0])
		if err != nil {
			return err
		}
		return withSession(func(a *app, id string) error {
			if _, err := a.engine.EditPrompt(cmd.Context(), id, string(data)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Prompt updated")
			return nil
		})
	},
}

var promptRegenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Generate a fresh prompt from the criteria and summary types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(a *app, id string) error {
			s, err := runWithSpinner(cmd, "Generating prompt", func() (*session.Session, error) {
				return a.engine.RegeneratePrompt(cmd.Context(), id)
			})
			if err != nil {
				return err
			}
			renderPrompt(cmd.OutOrStdout(), "Active prompt", s.ActivePrompt)
			return nil
		})
	},
}

// readArg reads the named file, or stdin for "-"
func readArg(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return fileutil.ReadLimited(cmd.InOrStdin(), fileutil.MaxFileSize)
	}
	return fileutil.SafeReadFile(name)
}

// parseTypesFile accepts JSON or YAML in any shape the type generator
// understands
func parseTypesFile(data []byte) ([]session.SummaryType, error) {
	text := string(data)
	if !strings.HasPrefix(strings.TrimSpace(text), "{") && !strings.HasPrefix(strings.TrimSpace(text), "[") {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("error parsing summary types: %w", err)
		}
		var b strings.Builder
		if err := nodeJSON(&b, &doc); err != nil {
			return nil, err
		}
		text = b.String()
	}
	types, err := generator.ParseSummaryTypes(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing summary types: %w", err)
	}
	return types, nil
}

// nodeJSON writes a YAML node as JSON, keeping mapping order so types keep
// the order they were written in
func nodeJSON(b *strings.Builder, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return fmt.Errorf("empty document")
		}
		return nodeJSON(b, n.Content[0])
	case yaml.AliasNode:
		return nodeJSON(b, n.Alias)
	case yaml.MappingNode:
		b.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				b.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			b.Write(key)
			b.WriteByte(':')
			if err := nodeJSON(b, n.Content[i+1]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case yaml.SequenceNode:
		b.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := nodeJSON(b, c); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		switch n.ShortTag() {
		case "!!int", "!!float", "!!bool":
			b.WriteString(n.Value)
		case "!!null":
			b.WriteString("null")
		default:
			value, _ := json.Marshal(n.Value)
			b.Write(value)
		}
	}
	return nil
}

func init() {
	criteriaCmd.AddCommand(criteriaSetCmd)
	typesCmd.AddCommand(typesShowCmd, typesSetCmd, typesRegenCmd)
	promptCmd.AddCommand(promptShowCmd, promptEditCmd, promptRegenCmd)
	rootCmd.AddCommand(advanceCmd, backCmd, criteriaCmd, typesCmd, promptCmd)
}
