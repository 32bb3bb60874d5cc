package server

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
)

// logger writes one access line per request
var logger = log.New(os.Stdout, "[Server] ", log.LstdFlags)

// logRequest records method, route, session and outcome for every call.
// Inference streams are tagged so long durations read as expected.
func logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		auth := "-"
		if h := r.Header.Get("Authorization"); h != "" {
			auth = maskToken(h)
		}
		mode := "json"
		if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			mode = "sse"
		}
		config.DebugLog("[Server] %s %s from %s (length=%d, mode=%s)", r.Method, r.URL.Path, r.RemoteAddr, r.ContentLength, mode)

		handler(wrapped, r)

		duration := time.Since(start)
		sessionID := "-"
		if id := r.PathValue("id"); len(id) > 8 {
			sessionID = id[:8]
		} else if id != "" {
			sessionID = id
		}
		logger.Printf("method=%s route=%q session=%s mode=%s auth=%s status=%d bytes=%d duration=%v",
			r.Method, r.Pattern, sessionID, mode, auth, wrapped.statusCode, wrapped.written, duration)

		if wrapped.statusCode >= http.StatusInternalServerError {
			config.VerboseLog("[Server] %s %s failed with %d after %v", r.Method, r.URL.Path, wrapped.statusCode, duration)
		}
	}
}
