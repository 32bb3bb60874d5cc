package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/fileutil"
	"github.com/kris-hansen/summaprompt/utils/input"
	"github.com/kris-hansen/summaprompt/utils/session"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

// decodeBody reads a size-limited JSON body into v. It writes a 400 and
// returns false when the body is unusable.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := fileutil.ReadLimited(r.Body, fileutil.MaxFileSize)
	if err != nil {
		sendJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// respond writes the session an operation produced, or its error
func respond(w http.ResponseWriter, s *session.Session, err error) {
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Success: true, Session: s})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Start(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Success: true, Session: sess})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context(), r.PathValue("id")); err != nil {
		sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Advance(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req GoToRequest
	if !decodeBody(w, r, &req) {
		return
	}
	step, ok := workflow.ParseStep(req.Step)
	if !ok {
		sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown step %q", req.Step))
		return
	}
	sess, err := s.engine.GoTo(r.Context(), r.PathValue("id"), step)
	respond(w, sess, err)
}

// handleSelectData accepts response items as JSON or as the raw content of
// a JSON, YAML, CSV or text file
func (s *Server) handleSelectData(w http.ResponseWriter, r *http.Request) {
	var req DataRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := req.Items
	source := req.Source
	var load *input.Result
	if len(items) == 0 {
		if req.Filename == "" || req.Content == "" {
			sendJSONError(w, http.StatusBadRequest, "Either items or filename and content are required")
			return
		}
		res, err := s.loader.Load(req.Filename, []byte(req.Content), input.Options{
			Column:   req.Column,
			IDColumn: req.IDColumn,
		})
		if err != nil {
			sendJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		load = res
		items = res.Items
		if source == "" {
			source = req.Filename
		}
	}

	sess, err := s.engine.SelectData(r.Context(), r.PathValue("id"), items, source)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Success: true, Load: load, Session: sess})
}

func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	var req CriteriaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.engine.SetCriteria(r.Context(), r.PathValue("id"), req.Criteria)
	respond(w, sess, err)
}

func (s *Server) handleUpdateSummaryTypes(w http.ResponseWriter, r *http.Request) {
	var req SummaryTypesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.engine.UpdateSummaryTypes(r.Context(), r.PathValue("id"), req.SummaryTypes)
	respond(w, sess, err)
}

func (s *Server) handleRegenerateSummaryTypes(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.RegenerateSummaryTypes(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleEditPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.engine.EditPrompt(r.Context(), r.PathValue("id"), req.Prompt)
	respond(w, sess, err)
}

func (s *Server) handleRegeneratePrompt(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.RegeneratePrompt(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.engine.SelectModel(r.Context(), r.PathValue("id"), req.Model)
	respond(w, sess, err)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := s.engine.SubmitFeedback(r.Context(), r.PathValue("id"), req.Entries)
	respond(w, sess, err)
}

func (s *Server) handleRequestIteration(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.RequestIteration(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleFeedbackReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.FeedbackReport(r.Context(), r.PathValue("id"))
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Success: true, Report: report})
}

func (s *Server) handleIterationDiff(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		sendError(w, err)
		return
	}
	if sess.PendingIteration == nil {
		sendError(w, workflow.ErrNoPendingIteration)
		return
	}
	unified, err := UnifiedDiff(sess.ActivePrompt, sess.PendingIteration.Prompt)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{
		Success:       true,
		ChangeSummary: sess.PendingIteration.ChangeSummary,
		Segments:      WordDiff(sess.ActivePrompt, sess.PendingIteration.Prompt),
		Stats:         CompareWords(sess.ActivePrompt, sess.PendingIteration.Prompt),
		Unified:       unified,
	})
}

func (s *Server) handleApproveIteration(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.ApproveIteration(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

func (s *Server) handleRejectIteration(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.RejectIteration(r.Context(), r.PathValue("id"))
	respond(w, sess, err)
}

// handleExport returns the export record as JSON, or YAML with ?format=yaml
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "yaml" && format != "yml" {
		sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported export format %q", format))
		return
	}

	record, err := s.engine.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		sendError(w, err)
		return
	}
	config.VerboseLog("[Server] Exported session %s", record.SessionID)

	if format == "yaml" || format == "yml" {
		data, err := yaml.Marshal(record)
		if err != nil {
			sendError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
