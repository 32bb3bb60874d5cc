package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/feedback"
	"github.com/kris-hansen/summaprompt/utils/llmjson"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// IterationInput is everything needed to revise the active prompt
type IterationInput struct {
	Prompt   string
	Criteria string
	Types    []session.SummaryType
	Results  []session.InferenceResult
	Entries  []session.FeedbackEntry
	Items    []session.ResponseItem
}

// Revision is a proposed replacement for the active prompt
type Revision struct {
	Prompt        string
	ChangeSummary string
	Report        feedback.Report
}

const iterationTemplate = `You are improving an instruction prompt for batch summarization of survey responses. A reviewer corrected some of the summaries it produced.

CURRENT PROMPT:
%s

SUMMARIZATION CRITERIA:
%s

SUMMARY TYPES:
%s

FEEDBACK ANALYSIS:
%s

Improve the prompt by:
1. Adding specific guidance that prevents the corrections above from recurring
2. Clarifying the distinction between summary types that were confused
3. Keeping the overall structure and using the exact type names: %s
4. Adding as little extra text as possible
5. Leaving out any survey responses and any output format instructions

Respond with JSON only:
{"revised_prompt": "<the complete improved prompt>", "change_summary": "<2-3 short sentences on what changed and why>"}`

// revisionPayload accepts the field names models commonly substitute for
// the requested ones.
type revisionPayload struct {
	RevisedPrompt  string `json:"revised_prompt"`
	Prompt         string `json:"prompt"`
	ImprovedPrompt string `json:"improved_prompt"`
	ChangeSummary  string `json:"change_summary"`
	Changes        string `json:"changes"`
	Rationale      string `json:"rationale"`
}

func (p revisionPayload) prompt() string {
	return firstNonBlank(p.RevisedPrompt, p.Prompt, p.ImprovedPrompt)
}

func (p revisionPayload) summary() string {
	return firstNonBlank(p.ChangeSummary, p.Changes, p.Rationale)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Iteration proposes a revised prompt addressing the corrections in
// in.Entries. With no corrections it returns ErrNoFeedbackToIterate without
// calling the gateway. Gateway failures are returned with a retry hint since
// there is no fallback revision. A JSON object without a recognizable prompt
// field is an error; output containing no JSON object is used as the revised
// prompt text and Fallback is set.
func (g *Generator) Iteration(ctx context.Context, in IterationInput) (Generated[Revision], error) {
	report := feedback.BuildReport(in.Results, in.Entries, in.Types, in.Items)
	if report.Empty() {
		return Generated[Revision]{}, ErrNoFeedbackToIterate
	}

	request := fmt.Sprintf(iterationTemplate,
		strings.TrimSpace(in.Prompt),
		strings.TrimSpace(in.Criteria),
		typeList(in.Types),
		report.Text(),
		typeNames(in.Types),
	)

	text, err := g.complete(ctx, "prompt revision", request)
	if err != nil {
		return Generated[Revision]{}, withRetryHint("revise prompt", err)
	}

	if raw, err := llmjson.Find(text, llmjson.Object); err == nil {
		var payload revisionPayload
		if err := json.Unmarshal(raw, &payload); err != nil || payload.prompt() == "" {
			return Generated[Revision]{}, fmt.Errorf("revise prompt: %w: JSON payload has no revised prompt", ErrGenerationFailure)
		}
		rev := Revision{
			Prompt:        CleanPrompt(payload.prompt()),
			ChangeSummary: payload.summary(),
			Report:        report,
		}
		if rev.ChangeSummary == "" {
			rev.ChangeSummary = report.ChangeSummary()
		}
		return Generated[Revision]{Value: rev}, nil
	}

	prompt := CleanPrompt(llmjson.StripFences(text))
	if prompt == "" {
		return Generated[Revision]{}, fmt.Errorf("revise prompt: %w: empty model output", ErrGenerationFailure)
	}
	config.VerboseLog("[Generator] Revision was not structured, using raw text as the candidate")
	return fallback(Revision{
		Prompt:        prompt,
		ChangeSummary: report.ChangeSummary(),
		Report:        report,
	}, fmt.Errorf("%w: revision payload not found", ErrGenerationFailure)), nil
}
