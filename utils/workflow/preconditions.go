package workflow

import (
	"fmt"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/feedback"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// CheckEntry returns a *PreconditionError when s does not hold what step
// needs before it can be entered. It never modifies s.
func CheckEntry(s *session.Session, step Step) error {
	missing := missingFor(s, step)
	if missing == "" {
		return nil
	}
	return &PreconditionError{Step: step, MissingField: missing}
}

func missingFor(s *session.Session, step Step) string {
	switch step {
	case StepSelectData:
		return ""
	case StepPreviewData, StepDefineCriteria:
		if len(s.RawData) == 0 {
			return "raw_data"
		}
	case StepGenerateSummaryTypes:
		if strings.TrimSpace(s.CriteriaDescription) == "" {
			return "criteria_description"
		}
	case StepReviewPrompt:
		if len(s.SummaryTypes) == 0 {
			return "summary_types"
		}
		if isStale(s, StepGenerateSummaryTypes) {
			return "current summary_types"
		}
	case StepRunInference:
		if strings.TrimSpace(s.ActivePrompt) == "" {
			return "active_prompt"
		}
		if len(s.RawData) == 0 {
			return "raw_data"
		}
		if isStale(s, StepReviewPrompt) {
			return "current active_prompt"
		}
	case StepCollectFeedback, StepFinalResults:
		return missingResults(s)
	case StepIteratePrompt:
		if StepFromSession(s) != StepCollectFeedback {
			return "current_step collect_feedback"
		}
		if len(feedback.Corrections(s.FeedbackEntries)) == 0 {
			return "feedback_entries"
		}
	case StepExport:
		if StepFromSession(s) != StepFinalResults && StepFromSession(s) != StepExport {
			return "current_step final_results"
		}
		if strings.TrimSpace(s.ActivePrompt) == "" {
			return "active_prompt"
		}
	default:
		return fmt.Sprintf("known step (got %q)", step)
	}
	return ""
}

func missingResults(s *session.Session) string {
	if len(s.RawData) == 0 || len(s.InferenceResults) != len(s.RawData) {
		return "inference_results"
	}
	if isStale(s, StepRunInference) {
		return "current inference_results"
	}
	return ""
}

// StepFromSession returns the session's current step
func StepFromSession(s *session.Session) Step {
	return Step(s.CurrentStep)
}

func isStale(s *session.Session, step Step) bool {
	return s.Stale[string(step)]
}

func setStale(s *session.Session, steps ...Step) {
	if s.Stale == nil {
		s.Stale = map[string]bool{}
	}
	for _, step := range steps {
		s.Stale[string(step)] = true
	}
}

func clearStale(s *session.Session, steps ...Step) {
	for _, step := range steps {
		delete(s.Stale, string(step))
	}
	if len(s.Stale) == 0 {
		s.Stale = nil
	}
}

// markDownstream flags every main-line step after step as stale. The data
// they hold is kept.
func markDownstream(s *session.Session, step Step) {
	setStale(s, downstream(step)...)
}

// checkInvariants guards the session shape before every save
func checkInvariants(s *session.Session) error {
	if _, ok := ParseStep(s.CurrentStep); !ok {
		return fmt.Errorf("session %s: unknown current_step %q", s.ID, s.CurrentStep)
	}
	if !isStale(s, StepRunInference) && len(s.InferenceResults) > 0 && len(s.InferenceResults) != len(s.RawData) {
		return fmt.Errorf("session %s: %d inference results for %d items", s.ID, len(s.InferenceResults), len(s.RawData))
	}
	for _, e := range s.FeedbackEntries {
		if e.ItemIndex < 0 || e.ItemIndex >= len(s.InferenceResults) {
			return fmt.Errorf("session %s: feedback references missing item %d", s.ID, e.ItemIndex)
		}
	}
	if StepReviewPrompt.Before(StepFromSession(s)) && strings.TrimSpace(s.ActivePrompt) == "" {
		return fmt.Errorf("session %s: active_prompt is empty at %s", s.ID, s.CurrentStep)
	}
	return nil
}
