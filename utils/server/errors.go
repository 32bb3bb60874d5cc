package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidID),
		errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, workflow.ErrInvalidFeedback):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrPreconditionNotMet),
		errors.Is(err, workflow.ErrNotAtStep),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrNoPendingIteration),
		errors.Is(err, workflow.ErrIterationLimit),
		errors.Is(err, workflow.ErrNoFeedbackToIterate):
		return http.StatusConflict
	case errors.As(err, &gwErr):
		if gwErr.Kind == gateway.KindTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, workflow.ErrGenerationFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorBody builds the error payload, carrying the gateway's retry hint
func errorBody(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		resp.Hint = gwErr.RetryHint()
	}
	return resp
}

// sendError writes err as a JSON error response
func sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		config.VerboseLog("[Server] %d: %s", status, truncateString(err.Error(), 300))
	}
	writeJSON(w, status, errorBody(err))
}

// sendJSONError sends a JSON error response with the given status code and message
func sendJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
