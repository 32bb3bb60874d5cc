package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway/gatewaytest"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	generatedPrompt = gatewaytest.GeneratedPrompt
	revisedPrompt   = gatewaytest.RevisedPrompt
)

var scripted = gatewaytest.Wizard

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, stub *gatewaytest.Stub) (*Engine, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	engine := NewEngine(store, stub, config.WorkflowConfig{
		GenerationModel: "mock-gen",
		InferenceModel:  "mock-infer",
		MaxIterations:   3,
	}, config.BatchConfig{MaxItems: 2}).WithClock(func() time.Time { return fixedNow })
	return engine, store
}

var surveyItems = []session.ResponseItem{
	{Identifier: "a", Text: "Great service"},
	{Identifier: "b", Text: "Slow delivery"},
	{Identifier: "c", Text: "Loved it"},
}

// walkToFeedback drives a new session to collect_feedback with inference done
func walkToFeedback(t *testing.T, e *Engine) *session.Session {
	t.Helper()
	ctx := context.Background()

	s, err := e.Start(ctx)
	require.NoError(t, err)
	id := s.ID

	_, err = e.SelectData(ctx, id, surveyItems, "test")
	require.NoError(t, err)
	_, err = e.Advance(ctx, id) // preview_data
	require.NoError(t, err)
	_, err = e.Advance(ctx, id) // define_criteria
	require.NoError(t, err)
	_, err = e.SetCriteria(ctx, id, "focus on sentiment and product issues")
	require.NoError(t, err)
	_, err = e.Advance(ctx, id) // generate_summary_types
	require.NoError(t, err)
	_, err = e.Advance(ctx, id) // review_prompt
	require.NoError(t, err)
	_, err = e.Advance(ctx, id) // run_inference
	require.NoError(t, err)
	_, err = e.RunInference(ctx, id)
	require.NoError(t, err)
	s, err = e.Advance(ctx, id) // collect_feedback
	require.NoError(t, err)
	require.Equal(t, string(StepCollectFeedback), s.CurrentStep)
	return s
}

var itemOneCorrection = session.FeedbackEntry{
	ItemIndex:        1,
	OriginalSummary:  "neutral",
	CorrectedSummary: session.StringPtr("negative, late delivery"),
	CorrectedTypeKey: session.StringPtr("specific_issues"),
}

func TestFullWalkthrough(t *testing.T) {
	ctx := context.Background()
	stub := gatewaytest.Func(scripted)
	e, _ := newTestEngine(t, stub)

	s := walkToFeedback(t, e)
	id := s.ID

	assert.Len(t, s.SummaryTypes, 4)
	assert.Equal(t, generatedPrompt, s.ActivePrompt)
	assert.Equal(t, "mock-infer", s.SelectedInferenceModel)
	require.Len(t, s.InferenceResults, len(surveyItems))
	assert.Equal(t, "about Slow delivery", s.InferenceResults[1].SummaryText)
	require.NotNil(t, s.InferenceReport)
	assert.Equal(t, 2, s.InferenceReport.Batches)
	assert.Empty(t, s.Stale)

	s, err := e.SubmitFeedback(ctx, id, []session.FeedbackEntry{itemOneCorrection})
	require.NoError(t, err)
	require.NotNil(t, s.FinalResults)
	assert.Equal(t, 1, s.FinalResults.TypeCounts["specific_issues"])
	assert.Equal(t, 2, s.FinalResults.TypeCounts["sentiment"])

	s, err = e.RequestIteration(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(StepIteratePrompt), s.CurrentStep)
	require.NotNil(t, s.PendingIteration)
	assert.Equal(t, revisedPrompt, s.PendingIteration.Prompt)
	assert.Equal(t, generatedPrompt, s.ActivePrompt)

	s, err = e.ApproveIteration(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(StepRunInference), s.CurrentStep)
	assert.Equal(t, revisedPrompt, s.ActivePrompt)
	require.Len(t, s.PromptHistory, 1)
	assert.Equal(t, generatedPrompt, s.PromptHistory[0].Prompt)
	assert.Equal(t, "Clarified delivery complaints.", s.PromptHistory[0].ChangeSummary)
	assert.Equal(t, 1, s.IterationCount)
	assert.True(t, s.Stale[string(StepRunInference)])

	_, err = e.Advance(ctx, id)
	assert.ErrorIs(t, err, ErrPreconditionNotMet, "stale results block collect_feedback")

	s, err = e.RunInference(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, s.FeedbackEntries)
	assert.Nil(t, s.FinalResults)
	assert.Empty(t, s.Stale)
	assert.Contains(t, stub.Calls()[len(stub.Calls())-1].Prompt, revisedPrompt)

	_, err = e.Advance(ctx, id) // collect_feedback
	require.NoError(t, err)
	s, err = e.Advance(ctx, id) // final_results
	require.NoError(t, err)
	require.NotNil(t, s.FinalResults)
	assert.Equal(t, 3, s.FinalResults.TypeCounts["sentiment"])

	record, err := e.Export(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, revisedPrompt, record.Instruction)
	assert.Equal(t, 1, record.Iterations)
	assert.Equal(t, "mock-infer", record.Model)
	assert.Equal(t, fixedNow, record.ExportedAt)

	s, err = e.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(StepExport), s.CurrentStep)

	_, err = e.Advance(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRunInferenceRequiresPrompt(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, gatewaytest.Func(scripted))

	s := session.New(session.NewID(), string(StepReviewPrompt), fixedNow)
	s.RawData = surveyItems
	s.CriteriaDescription = "sentiment"
	s.SummaryTypes = []session.SummaryType{{Key: "general", Name: "General", Description: "all"}}
	require.NoError(t, store.Save(ctx, s))

	_, err := e.Advance(ctx, s.ID)
	var precondition *PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.Equal(t, StepRunInference, precondition.Step)
	assert.Equal(t, "active_prompt", precondition.MissingField)

	_, err = e.GoTo(ctx, s.ID, StepRunInference)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)

	loaded, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StepReviewPrompt), loaded.CurrentStep)
}

func TestEntryPreconditions(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))

	s, err := e.Start(ctx)
	require.NoError(t, err)

	_, err = e.Advance(ctx, s.ID)
	var precondition *PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, "raw_data", precondition.MissingField)

	_, err = e.SelectData(ctx, s.ID, surveyItems, "test")
	require.NoError(t, err)
	_, err = e.GoTo(ctx, s.ID, StepGenerateSummaryTypes)
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, "criteria_description", precondition.MissingField)

	loaded, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StepSelectData), loaded.CurrentStep, "a failed forward jump moves nothing")
}

func TestRequestIterationWithoutFeedbackSkipsGateway(t *testing.T) {
	ctx := context.Background()
	stub := gatewaytest.Func(scripted)
	e, _ := newTestEngine(t, stub)
	s := walkToFeedback(t, e)
	calls := stub.CallCount()

	_, err := e.RequestIteration(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoFeedbackToIterate)

	// Confirmations alone are not corrections.
	_, err = e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{{ItemIndex: 0, Note: "fine"}})
	require.NoError(t, err)
	_, err = e.RequestIteration(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoFeedbackToIterate)

	assert.Equal(t, calls, stub.CallCount())
	loaded, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StepCollectFeedback), loaded.CurrentStep)
	assert.Nil(t, loaded.PendingIteration)
}

func TestRejectIterationKeepsPrompt(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	_, err := e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{itemOneCorrection})
	require.NoError(t, err)
	_, err = e.RequestIteration(ctx, s.ID)
	require.NoError(t, err)

	rejected, err := e.RejectIteration(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StepCollectFeedback), rejected.CurrentStep)
	assert.Equal(t, generatedPrompt, rejected.ActivePrompt)
	assert.Empty(t, rejected.PromptHistory)
	assert.Nil(t, rejected.PendingIteration)
	assert.Zero(t, rejected.IterationCount)
	assert.Len(t, rejected.FeedbackEntries, 1, "feedback survives a rejection")

	_, err = e.RejectIteration(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoPendingIteration)
}

func TestApproveIterationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	_, err := e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{itemOneCorrection})
	require.NoError(t, err)
	_, err = e.RequestIteration(ctx, s.ID)
	require.NoError(t, err)
	_, err = e.ApproveIteration(ctx, s.ID)
	require.NoError(t, err)

	_, err = e.ApproveIteration(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoPendingIteration)

	loaded, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.PromptHistory, 1)
	assert.Equal(t, revisedPrompt, loaded.ActivePrompt)
}

func TestIterationLimit(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	e := NewEngine(store, gatewaytest.Func(scripted), config.WorkflowConfig{GenerationModel: "mock-gen", MaxIterations: 1}, config.BatchConfig{})
	s := walkToFeedback(t, e)

	approveOne := func() error {
		if _, err := e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{itemOneCorrection}); err != nil {
			return err
		}
		if _, err := e.RequestIteration(ctx, s.ID); err != nil {
			return err
		}
		if _, err := e.ApproveIteration(ctx, s.ID); err != nil {
			return err
		}
		if _, err := e.RunInference(ctx, s.ID); err != nil {
			return err
		}
		_, err := e.Advance(ctx, s.ID)
		return err
	}

	require.NoError(t, approveOne())
	err := approveOne()
	var limitErr *IterationLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 1, limitErr.Limit)
}

func TestStepOperationsRequireTheirStep(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s, err := e.Start(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		op   func() error
	}{
		{"SetCriteria", func() error { _, err := e.SetCriteria(ctx, s.ID, "x"); return err }},
		{"EditPrompt", func() error { _, err := e.EditPrompt(ctx, s.ID, "x"); return err }},
		{"RunInference", func() error { _, err := e.RunInference(ctx, s.ID); return err }},
		{"SubmitFeedback", func() error { _, err := e.SubmitFeedback(ctx, s.ID, nil); return err }},
		{"RequestIteration", func() error { _, err := e.RequestIteration(ctx, s.ID); return err }},
		{"Export", func() error { _, err := e.Export(ctx, s.ID); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			assert.ErrorIs(t, err, ErrNotAtStep)
			var stepErr *StepError
			require.True(t, errors.As(err, &stepErr))
			assert.Equal(t, StepSelectData, stepErr.Current)
		})
	}
}

func TestResubmittingCriteriaMarksDownstreamStale(t *testing.T) {
	ctx := context.Background()
	stub := gatewaytest.Func(scripted)
	e, _ := newTestEngine(t, stub)
	s := walkToFeedback(t, e)
	id := s.ID

	s, err := e.GoTo(ctx, id, StepDefineCriteria)
	require.NoError(t, err)
	assert.Len(t, s.InferenceResults, 3, "going back keeps data")

	s, err = e.SetCriteria(ctx, id, "focus on delivery speed")
	require.NoError(t, err)
	for _, step := range []Step{StepGenerateSummaryTypes, StepReviewPrompt, StepRunInference, StepCollectFeedback, StepFinalResults} {
		assert.True(t, s.Stale[string(step)], "%s should be stale", step)
	}
	assert.Len(t, s.InferenceResults, 3, "stale data is kept")

	_, err = e.GoTo(ctx, id, StepCollectFeedback)
	var precondition *PreconditionError
	require.True(t, errors.As(err, &precondition))
	assert.Equal(t, StepCollectFeedback, precondition.Step)

	calls := stub.CallCount()
	s, err = e.GoTo(ctx, id, StepRunInference)
	require.NoError(t, err)
	assert.Equal(t, calls+2, stub.CallCount(), "summary types and prompt regenerated")
	assert.False(t, s.Stale[string(StepGenerateSummaryTypes)])
	assert.False(t, s.Stale[string(StepReviewPrompt)])
	assert.True(t, s.Stale[string(StepRunInference)])
}

func TestUpdateSummaryTypes(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	_, err := e.GoTo(ctx, s.ID, StepGenerateSummaryTypes)
	require.NoError(t, err)

	_, err = e.UpdateSummaryTypes(ctx, s.ID, []session.SummaryType{{Name: "Praise"}, {Key: "praise", Name: "Again"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err = e.UpdateSummaryTypes(ctx, s.ID, []session.SummaryType{
		{Name: "Delivery Speed", Description: "How fast parcels arrive"},
		{Key: "general", Name: "General", Description: "Other"},
	})
	require.NoError(t, err)
	assert.Equal(t, "delivery_speed", s.SummaryTypes[0].Key)
	assert.True(t, s.Stale[string(StepReviewPrompt)])
}

func TestSummaryTypeFallbackIsRecorded(t *testing.T) {
	ctx := context.Background()
	stub := gatewaytest.Func(func(prompt string) (string, error) {
		if strings.Contains(prompt, "generate 4 summary categories") {
			return "I would suggest sentiment and issues.", nil
		}
		return scripted(prompt)
	})
	e, _ := newTestEngine(t, stub)

	s, err := e.Start(ctx)
	require.NoError(t, err)
	_, err = e.SelectData(ctx, s.ID, surveyItems, "test")
	require.NoError(t, err)
	_, err = e.GoTo(ctx, s.ID, StepDefineCriteria)
	require.NoError(t, err)
	_, err = e.SetCriteria(ctx, s.ID, "focus on sentiment and product issues")
	require.NoError(t, err)

	s, err = e.Advance(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, string(StepGenerateSummaryTypes), s.CurrentStep)

	var keys []string
	for _, st := range s.SummaryTypes {
		keys = append(keys, st.Key)
	}
	assert.Contains(t, keys, "general")
	require.Len(t, s.GenerationNotes, 1)
	assert.True(t, s.GenerationNotes[0].Fallback)
	assert.NotEmpty(t, s.GenerationNotes[0].Reason)
}

func TestFinalResultsAreStable(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	_, err := e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{itemOneCorrection})
	require.NoError(t, err)
	first, err := e.Advance(ctx, s.ID)
	require.NoError(t, err)

	_, err = e.GoTo(ctx, s.ID, StepCollectFeedback)
	require.NoError(t, err)
	second, err := e.Advance(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, first.FinalResults, second.FinalResults)
	assert.Equal(t, 1, second.FinalResults.Corrected)
}

func TestSubmitFeedbackRejectsBadIndex(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	_, err := e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{{ItemIndex: 7, CorrectedSummary: session.StringPtr("x")}})
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	loaded, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.FeedbackEntries)
}

func TestSelectDataValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s, err := e.Start(ctx)
	require.NoError(t, err)

	_, err = e.SelectData(ctx, s.ID, nil, "empty")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.SelectData(ctx, s.ID, []session.ResponseItem{{Text: "  "}}, "blank")
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err = e.SelectData(ctx, s.ID, []session.ResponseItem{{Text: " ok "}}, "file.json")
	require.NoError(t, err)
	assert.Equal(t, "0", s.RawData[0].Identifier)
	assert.Equal(t, "ok", s.RawData[0].Text)
	assert.Equal(t, "file.json", s.DataSource)
}

func TestGoToRejectsSideBranch(t *testing.T) {
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s, err := e.Start(context.Background())
	require.NoError(t, err)

	_, err = e.GoTo(context.Background(), s.ID, StepIteratePrompt)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = e.GoTo(context.Background(), s.ID, Step("bogus"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResetDeletesSession(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s, err := e.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, e.Reset(ctx, s.ID))
	_, err = e.Get(ctx, s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestFeedbackReportDoesNotSave(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, gatewaytest.Func(scripted))
	s := walkToFeedback(t, e)

	report, err := e.FeedbackReport(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, report.Empty())

	_, err = e.SubmitFeedback(ctx, s.ID, []session.FeedbackEntry{itemOneCorrection})
	require.NoError(t, err)
	before, err := e.Get(ctx, s.ID)
	require.NoError(t, err)

	report, err = e.FeedbackReport(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalCorrections)
	assert.Equal(t, 1, report.TypeChanges)
	assert.Equal(t, 1, report.SummaryEdits)

	after, err := e.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	_, err = e.FeedbackReport(ctx, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAIAssistedSteps(t *testing.T) {
	assisted := map[Step]bool{
		StepGenerateSummaryTypes: true,
		StepReviewPrompt:         true,
	}
	for _, step := range AllSteps() {
		t.Run(string(step), func(t *testing.T) {
			assert.Equal(t, assisted[step], step.aiAssisted())
		})
	}
}

func TestMissingOutput(t *testing.T) {
	tests := []struct {
		name string
		sess session.Session
		step Step
		want bool
	}{
		{"no summary types", session.Session{}, StepGenerateSummaryTypes, true},
		{"summary types present", session.Session{SummaryTypes: []session.SummaryType{{Key: "general"}}}, StepGenerateSummaryTypes, false},
		{"blank prompt", session.Session{ActivePrompt: "  "}, StepReviewPrompt, true},
		{"prompt present", session.Session{ActivePrompt: "Summarize."}, StepReviewPrompt, false},
		{"manual step", session.Session{}, StepDefineCriteria, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, missingOutput(&tt.sess, tt.step))
		})
	}
}
