package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/driverscout/internal/ai"
	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/report"
	"github.com/IshaanNene/driverscout/internal/retrieval"
	"github.com/IshaanNene/driverscout/internal/types"
)

// DefaultMaxSessions bounds the chat sessions kept by a server.
const DefaultMaxSessions = 256

// Retriever runs one retrieval.
type Retriever interface {
	Retrieve(ctx context.Context, serviceTag string) (*retrieval.Result, error)
}

// Server provides a REST API for retrievals and report chat.
type Server struct {
	mux       *http.ServeMux
	addr      string
	retriever Retriever
	asker     ai.Asker
	metrics   *observability.Metrics
	logger    *slog.Logger

	sessions    map[string]*ai.ChatSession
	order       []string // least recently used first
	maxSessions int
	sessionsMu  sync.RWMutex
	seq         atomic.Int64
}

// NewServer creates a new API server. metrics may be nil.
func NewServer(addr string, retriever Retriever, asker ai.Asker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		addr:      addr,
		retriever: retriever,
		asker:     asker,
		metrics:   metrics,
		logger:    logger.With("component", "api_server"),
		sessions:  make(map[string]*ai.ChatSession),

		maxSessions: DefaultMaxSessions,
	}

	s.registerRoutes()
	return s
}

// SetMaxSessions changes the session limit. When a new session would
// exceed it, the least recently used session is dropped.
func (s *Server) SetMaxSessions(n int) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if n < 1 {
		n = 1
	}
	s.maxSessions = n
	for len(s.order) > s.maxSessions {
		s.evictOldest()
	}
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server starting", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/retrievals", s.handleRetrieve)

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

type attemptView struct {
	Strategy   string `json:"strategy"`
	Records    int    `json:"records"`
	Dropped    int    `json:"dropped"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type retrievalView struct {
	SessionID    string                `json:"session_id"`
	ServiceTag   string                `json:"service_tag"`
	Degraded     bool                  `json:"degraded"`
	Strategy     string                `json:"strategy,omitempty"`
	JSONPath     string                `json:"json_path"`
	MarkdownPath string                `json:"markdown_path"`
	ArchiveID    string                `json:"archive_id,omitempty"`
	TracePath    string                `json:"trace_path,omitempty"`
	Attempts     []attemptView         `json:"attempts"`
	Document     *types.ResultDocument `json:"document"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ServiceTag string `json:"service_tag"`
		SessionID  string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	res, err := s.retriever.Retrieve(r.Context(), body.ServiceTag)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, types.ErrEmptyServiceTag):
			status = http.StatusBadRequest
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusServiceUnavailable
		}
		s.jsonResponse(w, status, map[string]string{"error": err.Error()})
		return
	}

	id := s.bindSession(body.SessionID, res)

	view := retrievalView{
		SessionID:    id,
		ServiceTag:   res.Document.ServiceTag,
		Degraded:     res.Degraded,
		Strategy:     res.Strategy,
		JSONPath:     res.JSONPath,
		MarkdownPath: res.MarkdownPath,
		ArchiveID:    res.ArchiveID,
		TracePath:    res.TracePath,
		Attempts:     make([]attemptView, 0, len(res.Attempts)),
		Document:     res.Document,
	}
	for _, a := range res.Attempts {
		av := attemptView{Strategy: a.Strategy, Records: a.Records, Dropped: a.Dropped, DurationMS: a.Duration.Milliseconds()}
		if a.Err != nil {
			av.Error = a.Err.Error()
		}
		view.Attempts = append(view.Attempts, av)
	}

	s.jsonResponse(w, http.StatusCreated, view)
}

// bindSession resets the named session to the new report, or creates a
// session when id is empty or unknown.
func (s *Server) bindSession(id string, res *retrieval.Result) string {
	reportText := report.RenderMarkdown(res.Document)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.Reset(res.MarkdownPath, reportText)
		s.touch(id)
		return id
	}

	for len(s.order) >= s.maxSessions {
		s.evictOldest()
	}
	id = fmt.Sprintf("session-%d-%d", time.Now().UnixMilli(), s.seq.Add(1))
	s.sessions[id] = &ai.ChatSession{ReportPath: res.MarkdownPath, Report: reportText}
	s.order = append(s.order, id)
	return id
}

// session looks up id and marks it as recently used.
func (s *Server) session(id string) (*ai.ChatSession, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		s.touch(id)
	}
	return sess, ok
}

func (s *Server) deleteSession(id string) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	s.removeFromOrder(id)
	return true
}

// touch moves id to the back of the LRU order. Callers hold sessionsMu.
func (s *Server) touch(id string) {
	s.removeFromOrder(id)
	s.order = append(s.order, id)
}

func (s *Server) removeFromOrder(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Server) evictOldest() {
	id := s.order[0]
	s.order = s.order[1:]
	delete(s.sessions, id)
	s.logger.Debug("chat session evicted", "session_id", id)
}

func (s *Server) sessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "question is empty"})
		return
	}

	sess, ok := s.session(body.SessionID)
	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	if s.metrics != nil {
		s.metrics.ChatQuestions.Add(1)
	}
	reply := sess.Ask(r.Context(), s.asker, body.Question)
	if s.metrics != nil && strings.HasPrefix(reply, "Error") {
		s.metrics.ChatErrors.Add(1)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"session_id": body.SessionID,
		"reply":      reply,
		"messages":   sess.History(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.session(id)
	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"session_id":  id,
		"report_path": sess.ReportPath,
		"messages":    sess.History(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.deleteSession(r.PathValue("id")) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
