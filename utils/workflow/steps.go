// Package workflow is the wizard's step state machine. It owns the rules for
// moving a session between steps and drives the generators, the batch engine
// and the feedback merge as the session advances.
package workflow

// Step identifies one stage of the wizard
type Step string

const (
	StepSelectData           Step = "select_data"
	StepPreviewData          Step = "preview_data"
	StepDefineCriteria       Step = "define_criteria"
	StepGenerateSummaryTypes Step = "generate_summary_types"
	StepReviewPrompt         Step = "review_prompt"
	StepRunInference         Step = "run_inference"
	StepCollectFeedback      Step = "collect_feedback"
	StepFinalResults         Step = "final_results"

	// StepIteratePrompt is a side branch entered from collect_feedback
	StepIteratePrompt Step = "iterate_prompt"
	// StepExport is terminal and only reachable from final_results
	StepExport Step = "export"
)

// Sequence is the main line of the wizard, in order
var Sequence = []Step{
	StepSelectData,
	StepPreviewData,
	StepDefineCriteria,
	StepGenerateSummaryTypes,
	StepReviewPrompt,
	StepRunInference,
	StepCollectFeedback,
	StepFinalResults,
}

// AllSteps lists every step including the side branch and terminal step
func AllSteps() []Step {
	steps := append([]Step(nil), Sequence...)
	return append(steps, StepIteratePrompt, StepExport)
}

// ParseStep returns the step named s
func ParseStep(s string) (Step, bool) {
	for _, step := range AllSteps() {
		if string(step) == s {
			return step, true
		}
	}
	return "", false
}

// position orders steps along the main line. The side branch sits between
// collect_feedback and final_results and export comes last.
func (s Step) position() int {
	for i, step := range Sequence {
		if step == s {
			return i * 2
		}
	}
	switch s {
	case StepIteratePrompt:
		return StepCollectFeedback.position() + 1
	case StepExport:
		return len(Sequence) * 2
	}
	return -1
}

// Before reports whether s comes earlier in the wizard than other
func (s Step) Before(other Step) bool {
	return s.position() < other.position()
}

// next returns the step Advance moves to from s
func (s Step) next() (Step, bool) {
	switch s {
	case StepFinalResults:
		return StepExport, true
	case StepIteratePrompt, StepExport:
		return "", false
	}
	for i, step := range Sequence {
		if step == s && i+1 < len(Sequence) {
			return Sequence[i+1], true
		}
	}
	return "", false
}

// downstream returns the main-line steps after s
func downstream(s Step) []Step {
	var out []Step
	for _, step := range Sequence {
		if s.Before(step) {
			out = append(out, step)
		}
	}
	return out
}

// aiAssisted steps generate their output on entry when it is missing or stale
func (s Step) aiAssisted() bool {
	return s == StepGenerateSummaryTypes || s == StepReviewPrompt
}
