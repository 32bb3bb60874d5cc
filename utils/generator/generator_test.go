package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/gateway/gatewaytest"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasKey(types []session.SummaryType, key string) bool {
	for _, t := range types {
		if t.Key == key {
			return true
		}
	}
	return false
}

func TestSummaryTypesMalformedOutputFallsBack(t *testing.T) {
	stub := gatewaytest.New("Sure! I think sentiment and product issues are the important categories here.")
	g := New(stub, "mock-model", 500)

	got := g.SummaryTypes(context.Background(), "focus on sentiment and product issues")

	assert.True(t, got.Fallback)
	assert.ErrorIs(t, got.Err, ErrGenerationFailure)
	assert.Equal(t, DefaultSummaryTypes(), got.Value)
	assert.True(t, hasKey(got.Value, CatchAllKey))
	assert.Equal(t, 1, stub.CallCount())

	call := stub.Calls()[0]
	assert.Contains(t, call.Prompt, "focus on sentiment and product issues")
	assert.Equal(t, "mock-model", call.Model)
	assert.Equal(t, 500, call.MaxTokens)
}

func TestSummaryTypesGatewayFailureFallsBack(t *testing.T) {
	stub := gatewaytest.Failing(&gateway.Error{Kind: gateway.KindTimeout, Model: "m", Err: context.DeadlineExceeded})
	got := New(stub, "m", 0).SummaryTypes(context.Background(), "anything")

	assert.True(t, got.Fallback)
	assert.ErrorIs(t, got.Err, ErrGenerationFailure)
	var gwErr *gateway.Error
	assert.True(t, errors.As(got.Err, &gwErr))
	assert.True(t, hasKey(got.Value, CatchAllKey))
}

func TestSummaryTypesFromModel(t *testing.T) {
	stub := gatewaytest.New("Here you go:\n```json\n" + `{
		"themes": {"name": "Delivery Topics", "description": "Points about shipping"},
		"sentiment": {"name": "Satisfaction", "description": "How happy they are"},
		"Specific Issues": {"name": "Delivery Problems", "description": "Late or lost parcels"}
	}` + "\n```")

	got := New(stub, "m", 0).SummaryTypes(context.Background(), "delivery")

	require.False(t, got.Fallback)
	require.NoError(t, got.Err)
	var keys []string
	for _, st := range got.Value {
		keys = append(keys, st.Key)
	}
	assert.Equal(t, []string{"themes", "sentiment", "specific_issues", "general"}, keys)
	assert.Equal(t, "Delivery Topics", got.Value[0].Name)
}

func TestParseSummaryTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys []string
		wantErr  bool
	}{
		{
			name:     "array of records",
			input:    `[{"key":"praise","name":"Praise","description":"Positive remarks"},{"key":"general","name":"Other","description":"Rest"}]`,
			wantKeys: []string{"praise", "general"},
		},
		{
			name:     "wrapped list",
			input:    `{"summary_types":[{"name":"Pricing Concerns","description":"Cost remarks"}]}`,
			wantKeys: []string{"pricing_concerns", "general"},
		},
		{
			name:     "invalid and duplicate records dropped",
			input:    `[{"key":"a","name":"A","description":"first"},{"key":"A","name":"A again","description":"dup"},{"key":"b","name":"","description":"no name"}]`,
			wantKeys: []string{"a", "general"},
		},
		{
			name:    "no valid records",
			input:   `{"x": {"name": "", "description": ""}}`,
			wantErr: true,
		},
		{
			name:    "prose only",
			input:   "no json here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummaryTypes(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrGenerationFailure)
				return
			}
			require.NoError(t, err)
			var keys []string
			for _, st := range got {
				keys = append(keys, st.Key)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestInitialPrompt(t *testing.T) {
	types := DefaultSummaryTypes()
	stub := gatewaytest.New("Here is the prompt:\nYou summarize survey responses about delivery.\n\nUse the Specific Issues type for concrete problems.\n\nOutput format: return a JSON array of objects.")

	got := New(stub, "m", 0).InitialPrompt(context.Background(), "delivery", types)

	require.False(t, got.Fallback)
	assert.Equal(t, "You summarize survey responses about delivery.\n\nUse the Specific Issues type for concrete problems.", got.Value)
	assert.Contains(t, stub.Calls()[0].Prompt, "Specific Issues")
}

func TestInitialPromptFallback(t *testing.T) {
	types := DefaultSummaryTypes()

	tests := []struct {
		name string
		stub *gatewaytest.Stub
	}{
		{"gateway failure", gatewaytest.Failing(&gateway.Error{Kind: gateway.KindUnauthorized, Err: errors.New("bad key")})},
		{"empty output", gatewaytest.New("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.stub, "m", 0).InitialPrompt(context.Background(), "focus on delivery", types)
			assert.True(t, got.Fallback)
			assert.ErrorIs(t, got.Err, ErrGenerationFailure)
			assert.Equal(t, TemplatePrompt("focus on delivery", types), got.Value)
			assert.Contains(t, got.Value, "focus on delivery")
			for _, st := range types {
				assert.Contains(t, got.Value, st.Name)
				assert.Contains(t, got.Value, st.Description)
			}
		})
	}
}

func TestCleanPrompt(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```\nSummarize.\n```", "Summarize."},
		{"Summarize.\n\nRespond with JSON.", "Summarize."},
		{"Return the summaries as JSON.", "Return the summaries as JSON."},
		{"Here's the prompt:\nSummarize.", "Summarize."},
		{"Summarize.\n\nOutput format: a JSON array of objects.", "Summarize."},
		{"Summarize.\n\nFormat your response as a table.\n\nRespond in JSON.", "Summarize."},
		{
			"Summarize each survey response in one sentence.\n\nReturn the most specific type when several could apply.",
			"Summarize each survey response in one sentence.\n\nReturn the most specific type when several could apply.",
		},
		{
			"Summarize each response.\n\nRespond with empathy when the respondent is upset.",
			"Summarize each response.\n\nRespond with empathy when the respondent is upset.",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPrompt(tt.in))
	}
}

func iterationInput(entries []session.FeedbackEntry) IterationInput {
	return IterationInput{
		Prompt:   "Summarize each response.",
		Criteria: "sentiment",
		Types:    DefaultSummaryTypes(),
		Results: []session.InferenceResult{
			{ItemIndex: 0, SummaryText: "happy", MatchedTypeKey: session.StringPtr("sentiment")},
			{ItemIndex: 1, SummaryText: "neutral", MatchedTypeKey: session.StringPtr("sentiment")},
		},
		Entries: entries,
		Items:   []session.ResponseItem{{Text: "Great service"}, {Text: "Slow delivery"}},
	}
}

func TestIterationWithoutCorrectionsSkipsGateway(t *testing.T) {
	tests := []struct {
		name    string
		entries []session.FeedbackEntry
	}{
		{"no entries", nil},
		{"confirmations only", []session.FeedbackEntry{{ItemIndex: 0, Note: "fine"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := gatewaytest.New(`{"revised_prompt":"x"}`)
			_, err := New(stub, "m", 0).Iteration(context.Background(), iterationInput(tt.entries))
			assert.ErrorIs(t, err, ErrNoFeedbackToIterate)
			assert.Zero(t, stub.CallCount())
		})
	}
}

var correction = []session.FeedbackEntry{{
	ItemIndex:        1,
	CorrectedSummary: session.StringPtr("negative, late delivery"),
	CorrectedTypeKey: session.StringPtr("specific_issues"),
	Note:             "delivery complaints are issues",
}}

func TestIterationStructured(t *testing.T) {
	stub := gatewaytest.New(`{"revised_prompt": "Summarize each response. Delivery complaints are Specific Issues.", "change_summary": "Clarified delivery complaints."}`)

	got, err := New(stub, "m", 0).Iteration(context.Background(), iterationInput(correction))

	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.Equal(t, "Summarize each response. Delivery complaints are Specific Issues.", got.Value.Prompt)
	assert.Equal(t, "Clarified delivery complaints.", got.Value.ChangeSummary)
	assert.Equal(t, 1, got.Value.Report.TotalCorrections)

	request := stub.Calls()[0].Prompt
	assert.Contains(t, request, "Summarize each response.")
	assert.Contains(t, request, "Sentiment → Specific Issues")
	assert.Contains(t, request, "delivery complaints are issues")
}

func TestIterationUnstructuredUsesText(t *testing.T) {
	stub := gatewaytest.New("Summarize each response, treating delivery complaints as Specific Issues.")

	got, err := New(stub, "m", 0).Iteration(context.Background(), iterationInput(correction))

	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.ErrorIs(t, got.Err, ErrGenerationFailure)
	assert.Equal(t, "Summarize each response, treating delivery complaints as Specific Issues.", got.Value.Prompt)
	assert.Contains(t, got.Value.ChangeSummary, "1 correction(s)")
}

func TestIterationPayloadFields(t *testing.T) {
	tests := []struct {
		name        string
		output      string
		wantPrompt  string
		wantSummary string
		wantErr     bool
	}{
		{
			name:        "prompt and changes",
			output:      `{"prompt": "Treat delivery complaints as Specific Issues.", "changes": "x"}`,
			wantPrompt:  "Treat delivery complaints as Specific Issues.",
			wantSummary: "x",
		},
		{
			name:        "improved prompt and rationale in prose",
			output:      "Here you go:\n{\"improved_prompt\": \"Summarize briefly.\", \"rationale\": \"Shorter.\"}",
			wantPrompt:  "Summarize briefly.",
			wantSummary: "Shorter.",
		},
		{
			name:        "missing summary falls back to report",
			output:      `{"revised_prompt": "Summarize briefly."}`,
			wantPrompt:  "Summarize briefly.",
			wantSummary: "1 correction(s)",
		},
		{
			name:    "object without a prompt field",
			output:  `{"changes": "x"}`,
			wantErr: true,
		},
		{
			name:    "object with empty prompt",
			output:  `{"revised_prompt": "  ", "change_summary": "nothing"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(gatewaytest.New(tt.output), "m", 0).Iteration(context.Background(), iterationInput(correction))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrGenerationFailure)
				assert.Empty(t, got.Value.Prompt)
				return
			}
			require.NoError(t, err)
			assert.False(t, got.Fallback)
			assert.Equal(t, tt.wantPrompt, got.Value.Prompt)
			assert.Contains(t, got.Value.ChangeSummary, tt.wantSummary)
		})
	}
}

func TestIterationGatewayFailure(t *testing.T) {
	stub := gatewaytest.Failing(&gateway.Error{Kind: gateway.KindRateLimited, Model: "m", Err: errors.New("429")})

	_, err := New(stub, "m", 0).Iteration(context.Background(), iterationInput(correction))

	require.Error(t, err)
	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, gateway.KindRateLimited, gwErr.Kind)
	assert.Contains(t, err.Error(), "rate limiting")
}

func TestIterationEmptyOutput(t *testing.T) {
	_, err := New(gatewaytest.New(""), "m", 0).Iteration(context.Background(), iterationInput(correction))
	assert.ErrorIs(t, err, ErrGenerationFailure)
}
