package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/gateway/gatewaytest"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

const unknownID = "00000000-0000-4000-8000-000000000000"

func newTestServer(t *testing.T, serverConfig *config.ServerConfig) *Server {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	engine := workflow.NewEngine(store, gatewaytest.Func(gatewaytest.Wizard), config.WorkflowConfig{
		GenerationModel: "mock-gen",
		InferenceModel:  "mock-infer",
	}, config.BatchConfig{MaxItems: 2})

	env := config.NewEnvConfig()
	if serverConfig != nil {
		env.Server = serverConfig
	}
	return newServer(env, engine)
}

func call(t *testing.T, s *Server, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.withCORS(s.mux).ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) *session.Session {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Session
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := call(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWizardOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	w := call(t, s, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	base := "/sessions/" + created.Session.ID

	w = call(t, s, http.MethodPost, base+"/data", DataRequest{
		Filename: "survey.csv",
		Content:  "id,comment\nr1,Great service\nr2,N/A\nr3,Slow delivery\n",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data DataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, 3, data.Load.Total)
	assert.Equal(t, 1, data.Load.Dropped)
	assert.Equal(t, "survey.csv", data.Session.DataSource)
	require.Len(t, data.Session.RawData, 2)

	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPut, base+"/criteria", CriteriaRequest{Criteria: "sentiment and delivery"}))
	sess := decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	assert.Len(t, sess.SummaryTypes, 4)
	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	assert.Equal(t, gatewaytest.GeneratedPrompt, sess.ActivePrompt)
	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	assert.Equal(t, string(workflow.StepRunInference), sess.CurrentStep)

	w = call(t, s, http.MethodPost, base+"/inference", nil, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	stream := w.Body.String()
	assert.Contains(t, stream, "event: progress")
	assert.Contains(t, stream, `"type":"batch_done"`)
	assert.Contains(t, stream, "event: complete")
	assert.NotContains(t, stream, "event: error")

	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	require.Equal(t, string(workflow.StepCollectFeedback), sess.CurrentStep)
	assert.Equal(t, "about Slow delivery", sess.InferenceResults[1].SummaryText)

	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/feedback", FeedbackRequest{Entries: []session.FeedbackEntry{{
		ItemIndex:        1,
		CorrectedTypeKey: session.StringPtr("specific_issues"),
	}}}))
	require.NotNil(t, sess.FinalResults)
	assert.Equal(t, 1, sess.FinalResults.TypeCounts["specific_issues"])

	w = call(t, s, http.MethodGet, base+"/feedback/report", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.NotNil(t, report.Report)
	assert.Equal(t, 1, report.Report.TotalCorrections)
	assert.Equal(t, 1, report.Report.Confusion["Sentiment"]["Specific Issues"])

	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/iteration", nil))
	assert.Equal(t, string(workflow.StepIteratePrompt), sess.CurrentStep)

	w = call(t, s, http.MethodGet, base+"/iteration/diff", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var diff DiffResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	assert.Equal(t, "Clarified delivery complaints.", diff.ChangeSummary)
	assert.Contains(t, diff.Unified, "+++ candidate_prompt")
	assert.NotEmpty(t, diff.Segments)
	assert.Positive(t, diff.Stats.Changes)
	assert.Less(t, diff.Stats.Similarity, 1.0)

	sess = decodeSession(t, call(t, s, http.MethodPost, base+"/iteration/approve", nil))
	assert.Equal(t, gatewaytest.RevisedPrompt, sess.ActivePrompt)
	assert.Equal(t, string(workflow.StepRunInference), sess.CurrentStep)

	decodeSession(t, call(t, s, http.MethodPost, base+"/inference", nil))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))

	w = call(t, s, http.MethodGet, base+"/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/x-yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "instruction: "+gatewaytest.RevisedPrompt)
	assert.Contains(t, w.Body.String(), "iterations: 1")

	w = call(t, s, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, s, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorResponses(t *testing.T) {
	s := newTestServer(t, nil)
	w := call(t, s, http.MethodPost, "/sessions", nil)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	base := "/sessions/" + created.Session.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		errMsg string
	}{
		{"unknown session", http.MethodGet, "/sessions/" + unknownID, nil, http.StatusNotFound, "not found"},
		{"advance without data", http.MethodPost, base + "/advance", nil, http.StatusConflict, "raw_data"},
		{"approve without candidate", http.MethodPost, base + "/iteration/approve", nil, http.StatusConflict, "no pending iteration"},
		{"criteria at wrong step", http.MethodPut, base + "/criteria", CriteriaRequest{Criteria: "x"}, http.StatusConflict, "SetCriteria"},
		{"unknown step", http.MethodPost, base + "/goto", GoToRequest{Step: "nowhere"}, http.StatusBadRequest, "Unknown step"},
		{"empty data", http.MethodPost, base + "/data", DataRequest{}, http.StatusBadRequest, "required"},
		{"unparseable file", http.MethodPost, base + "/data", DataRequest{Filename: "x.json", Content: "{"}, http.StatusBadRequest, "JSON"},
		{"export too early", http.MethodGet, base + "/export", nil, http.StatusConflict, "Export"},
		{"bad export format", http.MethodGet, base + "/export?format=xml", nil, http.StatusBadRequest, "Unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.errMsg)
		})
	}

	req := httptest.NewRequest(http.MethodPut, base+"/criteria", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticatedRoutes(t *testing.T) {
	s := newTestServer(t, &config.ServerConfig{Enabled: true, BearerToken: "token-1234"})

	assert.Equal(t, http.StatusOK, call(t, s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, s, http.MethodPost, "/sessions", nil).Code)
	assert.Equal(t, http.StatusCreated, call(t, s, http.MethodPost, "/sessions", nil, "Authorization", "Bearer token-1234").Code)
}

func TestCORS(t *testing.T) {
	serverConfig := config.DefaultServerConfig()
	serverConfig.CORS.Enabled = true
	serverConfig.CORS.AllowedOrigins = []string{"https://app.example.com"}
	s := newTestServer(t, serverConfig)

	w := call(t, s, http.MethodOptions, "/sessions", nil, "Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))

	w = call(t, s, http.MethodGet, "/health", nil, "Origin", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetProviders(t *testing.T) {
	s := newTestServer(t, nil)
	s.envConfig.AddProvider("openai", config.Provider{APIKey: "sk", Models: []config.Model{{Name: "gpt-4o-mini"}}})

	w := call(t, s, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ProviderListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	byName := map[string]ProviderInfo{}
	for _, p := range resp.Providers {
		byName[p.Name] = p
	}
	require.Contains(t, byName, "openai")
	assert.True(t, byName["openai"].Enabled)
	assert.Equal(t, []string{"gpt-4o-mini"}, byName["openai"].Models)
	assert.True(t, byName["mock"].Enabled)

	w = call(t, s, http.MethodGet, "/providers/mock/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mock-model")

	w = call(t, s, http.MethodGet, "/providers/nope/models", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", session.ErrInvalidID), http.StatusBadRequest},
		{&workflow.PreconditionError{Step: workflow.StepReviewPrompt, MissingField: "summary_types"}, http.StatusConflict},
		{&workflow.IterationLimitError{Count: 3, Limit: 3}, http.StatusConflict},
		{workflow.ErrNoFeedbackToIterate, http.StatusConflict},
		{&workflow.InputError{Field: "criteria", Reason: "empty"}, http.StatusBadRequest},
		{&gateway.Error{Kind: gateway.KindRateLimited, Err: errors.New("429")}, http.StatusBadGateway},
		{&gateway.Error{Kind: gateway.KindTimeout, Err: errors.New("slow")}, http.StatusGatewayTimeout},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}

	body := errorBody(fmt.Errorf("revise prompt: %w", &gateway.Error{Kind: gateway.KindRateLimited, Err: errors.New("429")}))
	assert.Contains(t, body.Hint, "rate limiting")
}

func TestWordDiff(t *testing.T) {
	segments := WordDiff("summarize each response briefly", "summarize every response briefly and clearly")
	assert.Equal(t, []DiffSegment{
		{Op: "equal", Text: "summarize"},
		{Op: "delete", Text: "each"},
		{Op: "insert", Text: "every"},
		{Op: "equal", Text: "response briefly"},
		{Op: "insert", Text: "and clearly"},
	}, segments)

	assert.Empty(t, WordDiff("", ""))
}

func TestCompareWords(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
		want   DiffStats
	}{
		{"identical", "keep it short", "keep it short", DiffStats{Similarity: 1}},
		{"both empty", "", "", DiffStats{Similarity: 1}},
		{
			name:   "replace and append",
			before: "summarize each response briefly",
			after:  "summarize every response briefly and clearly",
			want:   DiffStats{Changes: 2, Similarity: 0.6, WordsAdded: 3, WordsGone: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareWords(tt.before, tt.after)
			assert.Equal(t, tt.want.Changes, got.Changes)
			assert.Equal(t, tt.want.WordsAdded, got.WordsAdded)
			assert.Equal(t, tt.want.WordsGone, got.WordsGone)
			assert.InDelta(t, tt.want.Similarity, got.Similarity, 0.001)
		})
	}
}

func sessionReadyForInference(t *testing.T, s *Server) string {
	t.Helper()
	w := call(t, s, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	base := "/sessions/" + created.Session.ID

	w = call(t, s, http.MethodPost, base+"/data", DataRequest{
		Filename: "survey.csv",
		Content:  "id,comment\nr1,Great service\nr2,Slow delivery\nr3,Friendly staff\n",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPut, base+"/criteria", CriteriaRequest{Criteria: "sentiment"}))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	sess := decodeSession(t, call(t, s, http.MethodPost, base+"/advance", nil))
	require.Equal(t, string(workflow.StepRunInference), sess.CurrentStep)
	return base
}

func TestInferenceStreamEndsWithTerminalEvent(t *testing.T) {
	saved := heartbeatInterval
	heartbeatInterval = time.Microsecond
	t.Cleanup(func() { heartbeatInterval = saved })

	tests := []struct {
		name     string
		terminal string
		prepare  func(t *testing.T, s *Server, base string)
	}{
		{name: "complete", terminal: "complete"},
		{
			name:     "error",
			terminal: "error",
			prepare: func(t *testing.T, s *Server, base string) {
				require.Equal(t, http.StatusNoContent, call(t, s, http.MethodDelete, base, nil).Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				s := newTestServer(t, nil)
				base := sessionReadyForInference(t, s)
				if tt.prepare != nil {
					tt.prepare(t, s, base)
				}

				w := call(t, s, http.MethodPost, base+"/inference", nil, "Accept", "text/event-stream")
				stream := w.Body.String()

				events := strings.Split(strings.TrimSpace(stream), "\n\n")
				last := events[len(events)-1]
				assert.True(t, strings.HasPrefix(last, "event: "+tt.terminal+"\n"), "stream must end with the %s event, got %q", tt.terminal, last)

				time.Sleep(2 * time.Millisecond)
				assert.Equal(t, stream, w.Body.String(), "nothing may be written after the handler returns")
			}
		})
	}
}

func TestSSEWriterRejectsWritesAfterClose(t *testing.T) {
	tests := []struct {
		name  string
		write func(sw *sseWriter) error
	}{
		{"event", func(sw *sseWriter) error { return sw.Send("progress", map[string]int{"batch": 1}) }},
		{"heartbeat", func(sw *sseWriter) error { return sw.SendHeartbeat() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			sw, ok := newSSEWriter(w)
			require.True(t, ok)

			require.NoError(t, tt.write(sw))
			written := w.Body.Len()
			sw.Close()

			assert.ErrorIs(t, tt.write(sw), errStreamClosed)
			assert.Equal(t, written, w.Body.Len())
		})
	}
}

func TestKeepAliveStopWaitsForHeartbeats(t *testing.T) {
	w := httptest.NewRecorder()
	sw, ok := newSSEWriter(w)
	require.True(t, ok)

	stop := sw.keepAlive(time.Microsecond)
	time.Sleep(time.Millisecond)
	stop()

	written := w.Body.String()
	assert.Contains(t, written, ": heartbeat")
	time.Sleep(time.Millisecond)
	assert.Equal(t, written, w.Body.String())
}
