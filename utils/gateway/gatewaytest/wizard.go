package gatewaytest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Canned outputs returned by Wizard
const (
	SummaryTypesJSON = `{
		"themes": {"name": "Key Themes", "description": "Recurring topics"},
		"sentiment": {"name": "Sentiment", "description": "How respondents feel"},
		"specific_issues": {"name": "Specific Issues", "description": "Concrete problems"},
		"general": {"name": "General", "description": "Anything else"}
	}`
	GeneratedPrompt = "Summarize each survey response with respect to sentiment and product issues."
	RevisedPrompt   = "Summarize each survey response. Treat delivery complaints as Specific Issues."
)

var itemPattern = regexp.MustCompile(`"(\d+)": \{"text":"([^"]*)"`)

// Wizard answers each kind of generation request the wizard makes the way
// a well-behaved model would. Batch items are summarized as "about <text>"
// under the sentiment type.
func Wizard(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "generate 4 summary categories"):
		return SummaryTypesJSON, nil
	case strings.Contains(prompt, "You are improving an instruction prompt"):
		return fmt.Sprintf(`{"revised_prompt": %q, "change_summary": "Clarified delivery complaints."}`, RevisedPrompt), nil
	case strings.Contains(prompt, "Responses = {"):
		var parts []string
		for _, m := range itemPattern.FindAllStringSubmatch(prompt, -1) {
			parts = append(parts, fmt.Sprintf(`{"index": %s, "summary": "about %s", "type": "sentiment"}`, m[1], m[2]))
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	case strings.Contains(prompt, "Create an expert-level instruction prompt"):
		return GeneratedPrompt, nil
	}
	return "", errors.New("unexpected prompt")
}
