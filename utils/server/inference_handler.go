package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/progress"
)

// heartbeatInterval keeps streamed inference connections alive between batches
var heartbeatInterval = 15 * time.Second

// handleRunInference runs the batch engine. Clients that accept
// text/event-stream receive a progress event per batch followed by a
// complete or error event; everyone else gets the session as JSON. The
// heartbeat goroutine has exited before the terminal event is written.
func (s *Server) handleRunInference(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		sess, err := s.engine.RunInference(r.Context(), id)
		respond(w, sess, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		sendJSONError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	config.VerboseLog("[Server] Streaming inference for session %s", id)

	engine := s.engine.WithProgress(progress.FuncWriter(func(u progress.Update) error {
		return sse.Send("progress", u)
	}))

	defer sse.Close()

	stop := sse.keepAlive(heartbeatInterval)
	sess, err := engine.RunInference(r.Context(), id)
	stop()
	if err != nil {
		sse.Send("error", errorBody(err))
		return
	}
	sse.Send("complete", SessionResponse{Success: true, Session: sess})
}
