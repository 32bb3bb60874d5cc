package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/session"
)

const initialPromptTemplate = `Create an expert-level instruction prompt for batch summarization of survey responses. The prompt will be reused for every batch of responses in a single run.

SUMMARIZATION CRITERIA:
%s

SUMMARY TYPES:
%s

Write a prompt that:
1. Clearly explains the summarization task and the criteria
2. Explains when each summary type applies, using the exact type names: %s
3. Gives guidance for edge cases and ambiguous responses
4. Emphasizes consistency across all responses in a batch
5. Is concise and to the point

Do NOT include any survey responses in the prompt.
Do NOT include output format or JSON schema instructions; they are added separately.

Write the complete prompt now:`

// InitialPrompt drafts the instruction prompt used for every inference batch.
// The prompt never contains item text or output-format instructions. When the
// model fails or answers with nothing usable, TemplatePrompt is returned with
// Fallback set.
func (g *Generator) InitialPrompt(ctx context.Context, criteria string, types []session.SummaryType) Generated[string] {
	request := fmt.Sprintf(initialPromptTemplate, strings.TrimSpace(criteria), typeList(types), typeNames(types))

	text, err := g.complete(ctx, "initial prompt", request)
	if err != nil {
		config.VerboseLog("[Generator] Using template prompt: %v", err)
		return fallback(TemplatePrompt(criteria, types), fmt.Errorf("%w: %w", ErrGenerationFailure, err))
	}

	prompt := CleanPrompt(text)
	if prompt == "" {
		config.VerboseLog("[Generator] Model returned an empty prompt, using template")
		return fallback(TemplatePrompt(criteria, types), fmt.Errorf("%w: empty prompt", ErrGenerationFailure))
	}
	return Generated[string]{Value: prompt}
}

// TemplatePrompt is the deterministic instruction prompt built from the
// criteria and every summary type's name and description
func TemplatePrompt(criteria string, types []session.SummaryType) string {
	var b strings.Builder
	b.WriteString("You are tasked with summarizing survey responses according to the following criteria:\n\n")
	b.WriteString("SUMMARIZATION CRITERIA:\n")
	b.WriteString(strings.TrimSpace(criteria))
	b.WriteString("\n\nSUMMARY TYPES:\n")
	b.WriteString(typeList(types))
	b.WriteString("\n\nFor each survey response:\n")
	b.WriteString("1. Read the response carefully\n")
	b.WriteString("2. Write a short summary that captures what the respondent says with respect to the criteria\n")
	b.WriteString("3. Assign the single summary type that fits best\n\n")
	b.WriteString("Be consistent across responses and consider the nuances of each one.")
	return b.String()
}

func typeList(types []session.SummaryType) string {
	lines := make([]string, 0, len(types))
	for _, t := range types {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", t.Name, t.Key, t.Description))
	}
	return strings.Join(lines, "\n")
}

func typeNames(types []session.SummaryType) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// formatMarkers identify paragraphs that tell the model how to format its
// answer. The batch engine appends its own schema, so these are dropped.
var formatMarkers = []string{
	"output format",
	"response format",
	"format your response",
	"json array",
	"json object",
	"respond with json",
	"respond in json",
	"return json",
	"in json format",
}

// CleanPrompt strips code fences, a leading "here is the prompt" line and
// trailing output-format paragraphs from a generated prompt
func CleanPrompt(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```markdown")
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if first, rest, ok := strings.Cut(text, "\n"); ok {
		lower := strings.ToLower(strings.TrimSpace(first))
		if (strings.HasPrefix(lower, "here is") || strings.HasPrefix(lower, "here's")) && strings.HasSuffix(lower, ":") {
			text = strings.TrimSpace(rest)
		}
	}

	paragraphs := strings.Split(text, "\n\n")
	for len(paragraphs) > 1 && isFormatParagraph(paragraphs[len(paragraphs)-1]) {
		paragraphs = paragraphs[:len(paragraphs)-1]
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}

func isFormatParagraph(p string) bool {
	lower := strings.ToLower(p)
	for _, marker := range formatMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
