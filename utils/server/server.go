// Package server exposes the wizard over a JSON HTTP API. Every endpoint
// maps onto one workflow.Engine operation; inference can stream batch
// progress as server-sent events.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/discovery"
	"github.com/kris-hansen/summaprompt/utils/input"
	"github.com/kris-hansen/summaprompt/utils/workflow"
)

// Server represents the HTTP server
type Server struct {
	mux       *http.ServeMux
	config    *config.ServerConfig
	envConfig *config.EnvConfig
	engine    *workflow.Engine
	loader    *input.Loader
	models    *discovery.Lister
}

func newServer(envConfig *config.EnvConfig, engine *workflow.Engine) *Server {
	serverConfig := envConfig.GetServerConfig()
	s := &Server{
		mux:       http.NewServeMux(),
		config:    serverConfig,
		envConfig: envConfig,
		engine:    engine,
		loader:    input.NewLoader(envConfig.Input),
		models:    discovery.New(envConfig),
	}
	s.routes()
	return s
}

// New creates a new HTTP server serving engine with the given configuration
func New(envConfig *config.EnvConfig, engine *workflow.Engine) (*http.Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server requires a workflow engine")
	}
	s := newServer(envConfig, engine)

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", s.config.Port),
		Handler:     s.withCORS(s.mux),
		ReadTimeout: 30 * time.Second,
		// inference over many batches can run for minutes
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}, nil
}

// routes sets up the server routes
func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", logRequest(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}))

	s.handle("GET /providers", s.handleGetProviders)
	s.handle("GET /providers/{name}/models", s.handleGetAvailableModels)

	s.handle("POST /sessions", s.handleStartSession)
	s.handle("GET /sessions/{id}", s.handleGetSession)
	s.handle("DELETE /sessions/{id}", s.handleDeleteSession)

	s.handle("POST /sessions/{id}/advance", s.handleAdvance)
	s.handle("POST /sessions/{id}/goto", s.handleGoTo)

	s.handle("POST /sessions/{id}/data", s.handleSelectData)
	s.handle("PUT /sessions/{id}/criteria", s.handleSetCriteria)
	s.handle("PUT /sessions/{id}/summary-types", s.handleUpdateSummaryTypes)
	s.handle("POST /sessions/{id}/summary-types/regenerate", s.handleRegenerateSummaryTypes)
	s.handle("PUT /sessions/{id}/prompt", s.handleEditPrompt)
	s.handle("POST /sessions/{id}/prompt/regenerate", s.handleRegeneratePrompt)
	s.handle("PUT /sessions/{id}/model", s.handleSelectModel)

	s.handle("POST /sessions/{id}/inference", s.handleRunInference)
	s.handle("POST /sessions/{id}/feedback", s.handleSubmitFeedback)
	s.handle("GET /sessions/{id}/feedback/report", s.handleFeedbackReport)

	s.handle("POST /sessions/{id}/iteration", s.handleRequestIteration)
	s.handle("GET /sessions/{id}/iteration/diff", s.handleIterationDiff)
	s.handle("POST /sessions/{id}/iteration/approve", s.handleApproveIteration)
	s.handle("POST /sessions/{id}/iteration/reject", s.handleRejectIteration)

	s.handle("GET /sessions/{id}/export", s.handleExport)
}

// handle registers an authenticated, logged endpoint
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, logRequest(func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(s.config, w, r) {
			return
		}
		h(w, r)
	}))
}

// withCORS applies the configured CORS headers and answers preflight requests
func (s *Server) withCORS(next http.Handler) http.Handler {
	cors := s.config.CORS
	if !cors.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(cors.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
			if cors.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cors.MaxAge))
			}
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.DebugLog("[Server] Error encoding response: %v", err)
	}
}

// Run creates and starts the HTTP server with the given configuration
func Run(envConfig *config.EnvConfig, engine *workflow.Engine) error {
	server, err := New(envConfig, engine)
	if err != nil {
		return err
	}

	serverConfig := envConfig.GetServerConfig()
	fmt.Printf("Starting server on port %d...\n", serverConfig.Port)
	if serverConfig.Enabled {
		fmt.Println("Authentication is enabled. Bearer token required.")
		fmt.Printf("Example usage: curl -X POST -H 'Authorization: Bearer %s' http://localhost:%d/sessions\n",
			maskToken(serverConfig.BearerToken), serverConfig.Port)
	} else {
		fmt.Printf("Example usage: curl -X POST http://localhost:%d/sessions\n", serverConfig.Port)
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}
