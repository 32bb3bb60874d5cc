package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/batch"
	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/feedback"
	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/generator"
	"github.com/kris-hansen/summaprompt/utils/matcher"
	"github.com/kris-hansen/summaprompt/utils/progress"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// Engine runs wizard operations against sessions in a store. Every operation
// loads the session, works on that copy and saves it once; a failed
// operation saves nothing.
type Engine struct {
	store session.Store
	gen   *generator.Generator
	batch *batch.Engine
	cfg   config.WorkflowConfig
	now   func() time.Time
}

// NewEngine wires the generators and the batch engine to gw
func NewEngine(store session.Store, gw gateway.Gateway, wf config.WorkflowConfig, bc config.BatchConfig) *Engine {
	if wf.GenerationModel == "" {
		wf.GenerationModel = config.DefaultGenerationModel
	}
	if wf.InferenceModel == "" {
		wf.InferenceModel = wf.GenerationModel
	}
	if wf.MaxIterations <= 0 {
		wf.MaxIterations = config.DefaultMaxIterations
	}
	return &Engine{
		store: store,
		gen:   generator.New(gw, wf.GenerationModel, wf.MaxTokens),
		batch: batch.New(gw, bc),
		cfg:   wf,
		now:   time.Now,
	}
}

// WithProgress returns a copy of the engine whose inference runs report to w
func (e *Engine) WithProgress(w progress.Writer) *Engine {
	clone := *e
	clone.batch = e.batch.WithProgress(w)
	return &clone
}

// WithClock returns a copy of the engine using now for timestamps
func (e *Engine) WithClock(now func() time.Time) *Engine {
	clone := *e
	clone.now = now
	return &clone
}

// Config returns the workflow settings in effect
func (e *Engine) Config() config.WorkflowConfig {
	return e.cfg
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// update loads the session, applies fn and saves the result. Nothing is
// saved when fn fails or leaves the session inconsistent.
func (e *Engine) update(ctx context.Context, id string, fn func(s *session.Session) error) (*session.Session, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := checkInvariants(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = e.timestamp()
	if err := e.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func requireStep(s *session.Session, op string, allowed ...Step) error {
	current := StepFromSession(s)
	for _, step := range allowed {
		if current == step {
			return nil
		}
	}
	return &StepError{Op: op, Current: current, Allowed: allowed}
}

// Start creates a new session positioned at select_data
func (e *Engine) Start(ctx context.Context) (*session.Session, error) {
	id, err := e.store.Create(ctx)
	if err != nil {
		return nil, err
	}
	s := session.New(id, string(StepSelectData), e.timestamp())
	if err := e.store.Save(ctx, s); err != nil {
		return nil, err
	}
	config.VerboseLog("[Workflow] Started session %s", id)
	return s, nil
}

// Get returns the stored session
func (e *Engine) Get(ctx context.Context, id string) (*session.Session, error) {
	return e.store.Load(ctx, id)
}

// Reset deletes the session
func (e *Engine) Reset(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	config.VerboseLog("[Workflow] Reset session %s", id)
	return nil
}

// Advance moves the session to the next step of the wizard
func (e *Engine) Advance(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		current := StepFromSession(s)
		if current == StepIteratePrompt {
			return fmt.Errorf("%w: approve or reject the pending iteration first", ErrInvalidTransition)
		}
		next, ok := current.next()
		if !ok {
			return fmt.Errorf("%w: %s is the last step", ErrInvalidTransition, current)
		}
		return e.moveForward(ctx, s, next)
	})
}

// GoTo moves the session to step. Earlier steps are always reachable and
// keep every piece of data. Later steps are entered one at a time, so every
// step on the way must accept the session.
func (e *Engine) GoTo(ctx context.Context, id string, step Step) (*session.Session, error) {
	if _, ok := ParseStep(string(step)); !ok {
		return nil, fmt.Errorf("%w: unknown step %q", ErrInvalidTransition, step)
	}
	if step == StepIteratePrompt {
		return nil, fmt.Errorf("%w: iterate_prompt is entered by requesting an iteration", ErrInvalidTransition)
	}
	return e.update(ctx, id, func(s *session.Session) error {
		current := StepFromSession(s)
		if current == step {
			return nil
		}
		if step.Before(current) {
			config.VerboseLog("[Workflow] Session %s back from %s to %s", s.ID, current, step)
			s.CurrentStep = string(step)
			return nil
		}
		for current != step {
			next, ok := current.next()
			if !ok {
				return fmt.Errorf("%w: cannot reach %s from %s", ErrInvalidTransition, step, current)
			}
			if err := e.moveForward(ctx, s, next); err != nil {
				return err
			}
			current = next
		}
		return nil
	})
}

// moveForward leaves the current step and enters next
func (e *Engine) moveForward(ctx context.Context, s *session.Session, next Step) error {
	current := StepFromSession(s)
	if err := CheckEntry(s, next); err != nil {
		return err
	}
	// Leaving a step that holds user input confirms it.
	switch current {
	case StepSelectData, StepPreviewData, StepDefineCriteria:
		clearStale(s, current)
	}
	return e.enter(ctx, s, next)
}

// enter runs the entry work of step and makes it current. Preconditions
// must already hold.
func (e *Engine) enter(ctx context.Context, s *session.Session, step Step) error {
	if step.aiAssisted() && (missingOutput(s, step) || isStale(s, step)) {
		e.generate(ctx, s, step)
	}
	switch step {
	case StepRunInference:
		if s.SelectedInferenceModel == "" {
			s.SelectedInferenceModel = e.cfg.InferenceModel
		}
	case StepFinalResults:
		final := feedback.Merge(s.InferenceResults, s.FeedbackEntries, s.SummaryTypes, s.RawData)
		s.FinalResults = &final
		clearStale(s, StepFinalResults)
	}
	config.VerboseLog("[Workflow] Session %s entered %s", s.ID, step)
	s.CurrentStep = string(step)
	return nil
}

// missingOutput reports whether an AI-assisted step has nothing to show yet
func missingOutput(s *session.Session, step Step) bool {
	switch step {
	case StepGenerateSummaryTypes:
		return len(s.SummaryTypes) == 0
	case StepReviewPrompt:
		return strings.TrimSpace(s.ActivePrompt) == ""
	}
	return false
}

func (e *Engine) generate(ctx context.Context, s *session.Session, step Step) {
	switch step {
	case StepGenerateSummaryTypes:
		e.generateSummaryTypes(ctx, s)
	case StepReviewPrompt:
		e.generatePrompt(ctx, s)
	}
}

func (e *Engine) note(s *session.Session, step Step, fallback bool, err error) {
	n := session.GenerationNote{Step: string(step), Fallback: fallback, At: e.timestamp()}
	if err != nil {
		n.Reason = err.Error()
	}
	s.GenerationNotes = append(s.GenerationNotes, n)
}

func (e *Engine) generateSummaryTypes(ctx context.Context, s *session.Session) {
	res := e.gen.SummaryTypes(ctx, s.CriteriaDescription)
	s.SummaryTypes = res.Value
	e.note(s, StepGenerateSummaryTypes, res.Fallback, res.Err)
	clearStale(s, StepGenerateSummaryTypes)
	markDownstream(s, StepGenerateSummaryTypes)
}

func (e *Engine) generatePrompt(ctx context.Context, s *session.Session) {
	res := e.gen.InitialPrompt(ctx, s.CriteriaDescription, s.SummaryTypes)
	s.ActivePrompt = res.Value
	e.note(s, StepReviewPrompt, res.Fallback, res.Err)
	clearStale(s, StepReviewPrompt)
	markDownstream(s, StepReviewPrompt)
}

// SelectData replaces the response items of the session
func (e *Engine) SelectData(ctx context.Context, id string, items []session.ResponseItem, source string) (*session.Session, error) {
	if len(items) == 0 {
		return nil, &InputError{Field: "raw_data", Reason: "at least one response item is required"}
	}
	cleaned := make([]session.ResponseItem, len(items))
	for i, item := range items {
		item.Text = strings.TrimSpace(item.Text)
		if item.Text == "" {
			return nil, &InputError{Field: "raw_data", Reason: fmt.Sprintf("item %d has no text", i)}
		}
		if item.Identifier == "" {
			item.Identifier = strconv.Itoa(i)
		}
		cleaned[i] = item
	}

	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "SelectData", StepSelectData); err != nil {
			return err
		}
		s.RawData = cleaned
		s.DataSource = source
		clearStale(s, StepSelectData)
		markDownstream(s, StepSelectData)
		config.VerboseLog("[Workflow] Session %s loaded %d items from %s", s.ID, len(cleaned), source)
		return nil
	})
}

// SetCriteria stores the summarization criteria
func (e *Engine) SetCriteria(ctx context.Context, id, criteria string) (*session.Session, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		return nil, &InputError{Field: "criteria_description", Reason: "must not be empty"}
	}
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "SetCriteria", StepDefineCriteria); err != nil {
			return err
		}
		s.CriteriaDescription = criteria
		clearStale(s, StepDefineCriteria)
		markDownstream(s, StepDefineCriteria)
		return nil
	})
}

// UpdateSummaryTypes replaces the summary types with user-edited ones
func (e *Engine) UpdateSummaryTypes(ctx context.Context, id string, types []session.SummaryType) (*session.Session, error) {
	cleaned, err := validateTypes(types)
	if err != nil {
		return nil, err
	}
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "UpdateSummaryTypes", StepGenerateSummaryTypes); err != nil {
			return err
		}
		s.SummaryTypes = cleaned
		clearStale(s, StepGenerateSummaryTypes)
		markDownstream(s, StepGenerateSummaryTypes)
		return nil
	})
}

func validateTypes(types []session.SummaryType) ([]session.SummaryType, error) {
	if len(types) == 0 {
		return nil, &InputError{Field: "summary_types", Reason: "at least one summary type is required"}
	}
	seen := map[string]bool{}
	out := make([]session.SummaryType, 0, len(types))
	for i, t := range types {
		t.Name = strings.TrimSpace(t.Name)
		t.Description = strings.TrimSpace(t.Description)
		if t.Name == "" {
			return nil, &InputError{Field: "summary_types", Reason: fmt.Sprintf("type %d has no name", i)}
		}
		key := t.Key
		if key == "" {
			key = t.Name
		}
		t.Key = matcher.Normalize(key)
		if t.Key == "" {
			return nil, &InputError{Field: "summary_types", Reason: fmt.Sprintf("type %d has no usable key", i)}
		}
		if seen[t.Key] {
			return nil, &InputError{Field: "summary_types", Reason: fmt.Sprintf("duplicate key %q", t.Key)}
		}
		seen[t.Key] = true
		out = append(out, t)
	}
	return out, nil
}

// RegenerateSummaryTypes asks the model for a fresh set of summary types
func (e *Engine) RegenerateSummaryTypes(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "RegenerateSummaryTypes", StepGenerateSummaryTypes); err != nil {
			return err
		}
		if err := CheckEntry(s, StepGenerateSummaryTypes); err != nil {
			return err
		}
		e.generateSummaryTypes(ctx, s)
		return nil
	})
}

// EditPrompt replaces the active prompt with user-edited text
func (e *Engine) EditPrompt(ctx context.Context, id, prompt string) (*session.Session, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &InputError{Field: "active_prompt", Reason: "must not be empty"}
	}
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "EditPrompt", StepReviewPrompt); err != nil {
			return err
		}
		s.ActivePrompt = prompt
		clearStale(s, StepReviewPrompt)
		markDownstream(s, StepReviewPrompt)
		return nil
	})
}

// RegeneratePrompt drafts a new instruction prompt from criteria and types
func (e *Engine) RegeneratePrompt(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "RegeneratePrompt", StepReviewPrompt); err != nil {
			return err
		}
		if err := CheckEntry(s, StepReviewPrompt); err != nil {
			return err
		}
		e.generatePrompt(ctx, s)
		return nil
	})
}

// SelectModel chooses the model used for inference. Changing it invalidates
// results produced by the previous model.
func (e *Engine) SelectModel(ctx context.Context, id, model string) (*session.Session, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, &InputError{Field: "selected_inference_model", Reason: "must not be empty"}
	}
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "SelectModel", StepRunInference); err != nil {
			return err
		}
		if model != s.SelectedInferenceModel && len(s.InferenceResults) > 0 {
			setStale(s, StepRunInference, StepCollectFeedback, StepFinalResults)
		}
		s.SelectedInferenceModel = model
		return nil
	})
}

// RunInference summarizes every item with the active prompt. Per-item
// failures are recorded on the results; feedback and final results from the
// previous run are cleared.
func (e *Engine) RunInference(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "RunInference", StepRunInference); err != nil {
			return err
		}
		if err := CheckEntry(s, StepRunInference); err != nil {
			return err
		}
		model := s.SelectedInferenceModel
		if model == "" {
			model = e.cfg.InferenceModel
		}

		results, report := e.batch.Summarize(ctx, batch.Request{
			Prompt: s.ActivePrompt,
			Items:  s.RawData,
			Model:  model,
			Types:  s.SummaryTypes,
		})
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("inference abandoned: %w", err)
		}

		s.SelectedInferenceModel = model
		s.InferenceResults = results
		s.InferenceReport = &report
		s.FeedbackEntries = nil
		s.FinalResults = nil
		s.PendingIteration = nil
		clearStale(s, StepRunInference, StepCollectFeedback, StepFinalResults)
		config.VerboseLog("[Workflow] Session %s inference: %d items, %d errored, %d unmatched", s.ID, len(results), report.Errored, report.Unmatched)
		return nil
	})
}

// SubmitFeedback records corrections and recomputes the final results.
// Entries for an index that already has feedback replace it.
func (e *Engine) SubmitFeedback(ctx context.Context, id string, entries []session.FeedbackEntry) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "SubmitFeedback", StepCollectFeedback); err != nil {
			return err
		}
		if missing := missingResults(s); missing != "" {
			return &PreconditionError{Step: StepCollectFeedback, MissingField: missing}
		}
		combined := append(append([]session.FeedbackEntry(nil), s.FeedbackEntries...), entries...)
		valid, err := feedback.Validate(s.InferenceResults, combined, s.SummaryTypes)
		if err != nil {
			return err
		}
		s.FeedbackEntries = valid
		final := feedback.Merge(s.InferenceResults, s.FeedbackEntries, s.SummaryTypes, s.RawData)
		s.FinalResults = &final
		clearStale(s, StepFinalResults)
		return nil
	})
}

// FeedbackReport groups the session's corrections by type pattern without
// changing the session. It is empty until feedback has been submitted.
func (e *Engine) FeedbackReport(ctx context.Context, id string) (*feedback.Report, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	report := feedback.BuildReport(s.InferenceResults, s.FeedbackEntries, s.SummaryTypes, s.RawData)
	return &report, nil
}

// RequestIteration drafts a revised prompt from the submitted corrections
// and moves the session to iterate_prompt. The active prompt is unchanged
// until the candidate is approved.
func (e *Engine) RequestIteration(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "RequestIteration", StepCollectFeedback); err != nil {
			return err
		}
		if len(feedback.Corrections(s.FeedbackEntries)) == 0 {
			return ErrNoFeedbackToIterate
		}
		if s.IterationCount >= e.cfg.MaxIterations {
			return &IterationLimitError{Count: s.IterationCount, Limit: e.cfg.MaxIterations}
		}
		if err := CheckEntry(s, StepIteratePrompt); err != nil {
			return err
		}

		rev, err := e.gen.Iteration(ctx, generator.IterationInput{
			Prompt:   s.ActivePrompt,
			Criteria: s.CriteriaDescription,
			Types:    s.SummaryTypes,
			Results:  s.InferenceResults,
			Entries:  s.FeedbackEntries,
			Items:    s.RawData,
		})
		if err != nil {
			return err
		}

		s.PendingIteration = &session.IterationCandidate{
			Prompt:        rev.Value.Prompt,
			ChangeSummary: rev.Value.ChangeSummary,
			Report:        rev.Value.Report.JSON(),
			Fallback:      rev.Fallback,
			CreatedAt:     e.timestamp(),
		}
		e.note(s, StepIteratePrompt, rev.Fallback, rev.Err)
		s.CurrentStep = string(StepIteratePrompt)
		config.VerboseLog("[Workflow] Session %s has an iteration candidate", s.ID)
		return nil
	})
}

// ApproveIteration makes the pending candidate the active prompt, keeps the
// replaced prompt in the history and returns to run_inference
func (e *Engine) ApproveIteration(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if s.PendingIteration == nil {
			return ErrNoPendingIteration
		}
		if err := requireStep(s, "ApproveIteration", StepIteratePrompt); err != nil {
			return err
		}
		candidate := s.PendingIteration
		s.PromptHistory = append(s.PromptHistory, session.PromptVersion{
			Prompt:        s.ActivePrompt,
			ChangeSummary: candidate.ChangeSummary,
			Iteration:     s.IterationCount + 1,
			ReplacedAt:    e.timestamp(),
		})
		s.ActivePrompt = candidate.Prompt
		s.PendingIteration = nil
		s.IterationCount++
		setStale(s, StepRunInference, StepCollectFeedback, StepFinalResults)

		if err := CheckEntry(s, StepRunInference); err != nil {
			return err
		}
		return e.enter(ctx, s, StepRunInference)
	})
}

// RejectIteration discards the pending candidate and returns to collect_feedback
func (e *Engine) RejectIteration(ctx context.Context, id string) (*session.Session, error) {
	return e.update(ctx, id, func(s *session.Session) error {
		if s.PendingIteration == nil {
			return ErrNoPendingIteration
		}
		if err := requireStep(s, "RejectIteration", StepIteratePrompt); err != nil {
			return err
		}
		s.PendingIteration = nil
		s.CurrentStep = string(StepCollectFeedback)
		return nil
	})
}

// ExportRecord is the hand-off record of a finished session
type ExportRecord struct {
	SessionID    string                `json:"session_id" yaml:"session_id"`
	Instruction  string                `json:"instruction" yaml:"instruction"`
	Criteria     string                `json:"criteria" yaml:"criteria"`
	SummaryTypes []session.SummaryType `json:"summary_types" yaml:"summary_types"`
	Model        string                `json:"model" yaml:"model"`
	Iterations   int                   `json:"iterations" yaml:"iterations"`
	ExportedAt   time.Time             `json:"exported_at" yaml:"exported_at"`
}

// Export returns the final instruction prompt and moves the session to export
func (e *Engine) Export(ctx context.Context, id string) (*ExportRecord, error) {
	var record *ExportRecord
	_, err := e.update(ctx, id, func(s *session.Session) error {
		if err := requireStep(s, "Export", StepFinalResults, StepExport); err != nil {
			return err
		}
		if err := CheckEntry(s, StepExport); err != nil {
			return err
		}
		record = &ExportRecord{
			SessionID:    s.ID,
			Instruction:  s.ActivePrompt,
			Criteria:     s.CriteriaDescription,
			SummaryTypes: s.SummaryTypes,
			Model:        s.SelectedInferenceModel,
			Iterations:   s.IterationCount,
			ExportedAt:   e.timestamp(),
		}
		s.CurrentStep = string(StepExport)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
