// Package api serves the tracker over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/query"
	"github.com/heinrichuk/pmoai/internal/snapshot"
	"github.com/heinrichuk/pmoai/internal/storage"
	"github.com/heinrichuk/pmoai/internal/store"
)

// Snapshotter queues on-demand snapshots.
type Snapshotter interface {
	Trigger() (models.SnapshotAck, error)
}

// Answerer answers chat messages.
type Answerer interface {
	Answer(ctx context.Context, query string) models.ChatMessage
}

type Option func(*Server)

// WithMCP mounts an MCP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

type Server struct {
	query     *query.Service
	snapshots Snapshotter
	assistant Answerer
	mcp       http.Handler
	logger    *zap.Logger
	mux       *http.ServeMux
}

func NewServer(q *query.Service, snapshots Snapshotter, assistant Answerer, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		query:     q,
		snapshots: snapshots,
		assistant: assistant,
		logger:    logger.Named("api"),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.loggingMiddleware(s.mux))
}

// HTTPServer returns a server for addr with the same timeouts the other
// services in this repo use.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /workstreams", s.handleWorkstreams)
	s.mux.HandleFunc("GET /workstreams/{id}", s.handleWorkstream)
	s.mux.HandleFunc("GET /workstreams/{id}/milestones", s.handleWorkstreamMilestones)
	s.mux.HandleFunc("GET /workstreams/{id}/risks", s.handleWorkstreamRisks)
	s.mux.HandleFunc("GET /workstreams/{id}/issues", s.handleWorkstreamIssues)
	s.mux.HandleFunc("GET /workstreams/{id}/dependencies", s.handleWorkstreamDependencies)
	s.mux.HandleFunc("GET /workstreams/{id}/sentiment", s.handleWorkstreamSentiment)

	s.mux.HandleFunc("GET /milestones", s.handleMilestones)
	s.mux.HandleFunc("GET /milestones/{id}", s.handleMilestone)
	s.mux.HandleFunc("GET /risks", s.handleRisks)
	s.mux.HandleFunc("GET /risks/{id}", s.handleRisk)
	s.mux.HandleFunc("GET /issues", s.handleIssues)
	s.mux.HandleFunc("GET /issues/{id}", s.handleIssue)
	s.mux.HandleFunc("GET /dependencies", s.handleDependencies)
	s.mux.HandleFunc("GET /dependencies/{id}", s.handleDependency)

	s.mux.HandleFunc("POST /chat", s.handleChat)

	s.mux.HandleFunc("POST /snapshots", s.handleCreateSnapshot)
	s.mux.HandleFunc("GET /snapshots", s.handleSnapshots)
	s.mux.HandleFunc("GET /snapshots/{id}", s.handleSnapshot)

	s.mux.HandleFunc("POST /sync/{source}", s.handleSync)

	if s.mcp != nil {
		s.mux.Handle("/mcp", s.mcp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWorkstreams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Workstreams())
}

func (s *Server) handleWorkstream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.query.Workstream(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Workstream not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleMilestone(w http.ResponseWriter, r *http.Request) {
	m, err := s.query.Milestone(r.PathValue("id"))
	s.writeRecord(w, r, m, err, "Milestone not found")
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	risk, err := s.query.Risk(r.PathValue("id"))
	s.writeRecord(w, r, risk, err, "Risk not found")
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.query.Issue(r.PathValue("id"))
	s.writeRecord(w, r, issue, err, "Issue not found")
}

func (s *Server) handleDependency(w http.ResponseWriter, r *http.Request) {
	d, err := s.query.Dependency(r.PathValue("id"))
	s.writeRecord(w, r, d, err, "Dependency not found")
}

// writeRecord answers a by-id lookup, mapping store.ErrNotFound to 404.
func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, v any, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleWorkstreamMilestones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Milestones(r.PathValue("id")))
}

func (s *Server) handleWorkstreamRisks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Risks(r.PathValue("id")))
}

func (s *Server) handleWorkstreamIssues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Issues(r.PathValue("id")))
}

func (s *Server) handleWorkstreamDependencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Dependencies(r.PathValue("id")))
}

func (s *Server) handleWorkstreamSentiment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Sentiment(r.PathValue("id")))
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Milestones(""))
}

func (s *Server) handleRisks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Risks(""))
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Issues(""))
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Dependencies(""))
}

// maxChatBody caps the POST /chat request body.
const maxChatBody = 1 << 20

type chatRequest struct {
	Message *string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == nil {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, s.assistant.Answer(r.Context(), *req.Message))
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	ack, err := s.snapshots.Trigger()
	switch {
	case errors.Is(err, snapshot.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "Snapshot queue is full, try again later")
		return
	case errors.Is(err, snapshot.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "Snapshot scheduler is shutting down")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.query.Snapshots())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.query.Snapshot(r.PathValue("id"))
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		writeError(w, http.StatusNotFound, "Snapshot not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.query.Sync(r.PathValue("source"))
	if errors.Is(err, query.ErrUnknownSource) {
		writeError(w, http.StatusBadRequest, "Invalid source. Must be 'sharepoint' or 'gitlab'")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
