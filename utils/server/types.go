package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/feedback"
	"github.com/kris-hansen/summaprompt/utils/input"
	"github.com/kris-hansen/summaprompt/utils/session"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SessionResponse wraps a session returned by any session endpoint
type SessionResponse struct {
	Success bool             `json:"success"`
	Session *session.Session `json:"session"`
}

// ErrorResponse represents a generic error API response
type ErrorResponse struct {
	Success bool   `json:"success"` // Should always be false
	Error   string `json:"error"`
	Hint    string `json:"hint,omitempty"`
}

// DataRequest supplies response items directly or as file content to parse
type DataRequest struct {
	Items    []session.ResponseItem `json:"items,omitempty"`
	Filename string                 `json:"filename,omitempty"`
	Content  string                 `json:"content,omitempty"`
	Column   string                 `json:"column,omitempty"`
	IDColumn string                 `json:"id_column,omitempty"`
	Source   string                 `json:"source,omitempty"`
}

// DataResponse reports how a file was loaded along with the updated session
type DataResponse struct {
	Success bool             `json:"success"`
	Load    *input.Result    `json:"load,omitempty"`
	Session *session.Session `json:"session"`
}

// GoToRequest names the step to move to
type GoToRequest struct {
	Step string `json:"step"`
}

// CriteriaRequest sets the criteria description
type CriteriaRequest struct {
	Criteria string `json:"criteria"`
}

// SummaryTypesRequest replaces the summary types
type SummaryTypesRequest struct {
	SummaryTypes []session.SummaryType `json:"summary_types"`
}

// PromptRequest replaces the active prompt
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ModelRequest selects the inference model
type ModelRequest struct {
	Model string `json:"model"`
}

// FeedbackRequest carries feedback entries to merge into the session
type FeedbackRequest struct {
	Entries []session.FeedbackEntry `json:"entries"`
}

// ReportResponse carries the correction patterns of a session
type ReportResponse struct {
	Success bool             `json:"success"`
	Report  *feedback.Report `json:"report"`
}

// DiffResponse compares the active prompt with the pending candidate
type DiffResponse struct {
	Success       bool          `json:"success"`
	ChangeSummary string        `json:"change_summary"`
	Segments      []DiffSegment `json:"segments"`
	Stats         DiffStats     `json:"stats"`
	Unified       string        `json:"unified"`
}

// ProviderInfo represents information about a provider
type ProviderInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Models      []string `json:"models"`
	Enabled     bool     `json:"enabled"`
}

// ProviderListResponse represents the response for provider listing
type ProviderListResponse struct {
	Success   bool           `json:"success"`
	Providers []ProviderInfo `json:"providers"`
}

// ModelListResponse lists the models a provider serves
type ModelListResponse struct {
	Success  bool     `json:"success"`
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

// responseWriter wraps http.ResponseWriter to capture the status code and implement http.Flusher
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	headersSent bool
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headersSent {
		return
	}
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
	rw.headersSent = true
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headersSent {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// errStreamClosed is returned by writes after the handler has finished the stream
var errStreamClosed = errors.New("event stream closed")

// sseWriter formats events as Server-Sent Events. Batches report progress
// from several goroutines so sends are serialized.
type sseWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	f      http.Flusher
	closed bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, f: f}, true
}

// Send writes one event whose data is v encoded as JSON
func (sw *sseWriter) Send(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		config.DebugLog("[SSE] Error marshaling %s event: %v", event, err)
		return err
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		config.DebugLog("[SSE] Error writing %s event: %v", event, err)
		return err
	}
	sw.f.Flush()
	config.DebugLog("[SSE] Sent %s event: bytes=%d", event, len(data))
	return nil
}

// SendHeartbeat writes a comment line that keeps idle proxies from closing the stream
func (sw *sseWriter) SendHeartbeat() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprint(sw.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}

// Close makes every later write fail with errStreamClosed. The ResponseWriter
// must not be touched once the handler returns.
func (sw *sseWriter) Close() {
	sw.mu.Lock()
	sw.closed = true
	sw.mu.Unlock()
}

// keepAlive sends a heartbeat every interval until the returned stop function
// is called. stop waits for the heartbeat goroutine to exit.
func (sw *sseWriter) keepAlive(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sw.SendHeartbeat(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
