package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
	"github.com/kagent-dev/toolchat/pkg/orchestrator"
	"github.com/kagent-dev/toolchat/pkg/store"
)

const maxRequestBody = 1 << 20

// MessageProcessor handles one chat message.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, contextID, text string) (*orchestrator.Result, error)
}

// Server exposes the chat API over HTTP.
type Server struct {
	cfg       config.ServerConfig
	processor MessageProcessor
	store     store.Store
	log       logr.Logger
	router    *mux.Router
}

// NewServer builds the router. gatherer may be nil to disable /metrics.
func NewServer(cfg config.ServerConfig, metricsCfg config.MetricsConfig, processor MessageProcessor, st store.Store, gatherer prometheus.Gatherer, log logr.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		store:     st,
		log:       log.WithName("http"),
		router:    mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/api/tools", s.handleListTools).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{contextId}/messages", s.handleSessionHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{contextId}", s.handleDeleteSession).Methods(http.MethodDelete)

	if gatherer != nil && !metricsCfg.Disabled {
		path := metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns an http.Server configured from ServerConfig.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	// SessionID is the client's context id. A new one is issued when empty.
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the body returned by POST /api/chat.
type ChatResponse struct {
	ContextID string `json:"contextId"`
	*orchestrator.Result
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request data",
			Code:    apperrors.ErrCodeInvalidInput,
			Errors:  []string{err.Error()},
		})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request data",
			Code:    apperrors.ErrCodeInvalidInput,
			Errors:  []string{"Message cannot be empty"},
		})
		return
	}

	contextID := req.SessionID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	result, err := s.processor.ProcessMessage(r.Context(), contextID, req.Message)
	if err != nil {
		s.logError(err)
		resp := errorResponse(err)
		resp.ContextID = contextID
		writeJSON(w, StatusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{ContextID: contextID, Result: result})
}

// ToolSummary is a tool as presented to clients: parameters map names to
// types and are omitted when the tool takes none.
type ToolSummary struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListTools(r.Context())
	if err != nil {
		s.log.Error(err, "Failed to fetch tools")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to fetch tools",
			Code:    apperrors.CodeOf(err),
		})
		return
	}

	out := make([]ToolSummary, 0, len(records))
	for _, rec := range records {
		summary := ToolSummary{Name: rec.Name, Description: rec.Description}
		if len(rec.Parameters) > 0 {
			summary.Parameters = make(map[string]string, len(rec.Parameters))
			for _, p := range rec.Parameters {
				summary.Parameters[p.Name] = p.Type
			}
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, out)
}

// SessionHistory is the body returned by GET /api/sessions/{contextId}/messages.
type SessionHistory struct {
	Session       *store.Session       `json:"session"`
	Messages      []store.Message      `json:"messages"`
	FunctionCalls []store.FunctionCall `json:"functionCalls"`
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	contextID := mux.Vars(r)["contextId"]

	session, err := s.store.GetSession(r.Context(), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	messages, err := s.store.ListMessages(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	calls, err := s.store.ListFunctionCalls(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if messages == nil {
		messages = []store.Message{}
	}
	if calls == nil {
		calls = []store.FunctionCall{}
	}
	writeJSON(w, http.StatusOK, SessionHistory{Session: session, Messages: messages, FunctionCalls: calls})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.Context(), mux.Vars(r)["contextId"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logError(err)
	writeJSON(w, StatusFor(err), errorResponse(err))
}

func (s *Server) logError(err error) {
	if StatusFor(err) >= http.StatusInternalServerError {
		s.log.Error(err, "Request failed", "code", apperrors.CodeOf(err))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.V(1).Info("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"durationMs", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
