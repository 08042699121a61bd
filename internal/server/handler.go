package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fundwise/steward/internal/cache"
	"github.com/fundwise/steward/internal/core"
	"github.com/fundwise/steward/internal/models"
)

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody    int64  // bytes, for JSON endpoints
	RequestsPerMinute int    // per-client rate limit
	APIToken          string // bearer token required on /api/v1 routes
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    1 * 1024 * 1024, // 1MB
		RequestsPerMinute: 120,
	}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(pipeline *core.Pipeline, tables *cache.TableCache, pinger Pinger, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)
	auth := authMiddleware(cfg.APIToken)

	// Execution order: auth -> rl -> handler
	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, rl.middleware)
	}

	s := &api{pipeline: pipeline, tables: tables, cfg: cfg, logger: logger}

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: store unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Commands and confirmation
	mux.Handle("POST /api/v1/commands", withAuth(s.handlePostCommand))
	mux.Handle("POST /api/v1/operations/{id}/confirm", withAuth(s.handleConfirm))
	mux.Handle("POST /api/v1/operations/{id}/cancel", withAuth(s.handleCancel))

	// History
	mux.Handle("GET /api/v1/changes", withAuth(s.handleListChanges))
	mux.Handle("POST /api/v1/changes/{id}/revert", withAuth(s.handleRevert))

	// Snapshots
	mux.Handle("GET /api/v1/snapshots", withAuth(s.handleListSnapshots))
	mux.Handle("POST /api/v1/snapshots", withAuth(s.handleCreateSnapshot))
	mux.Handle("POST /api/v1/snapshots/{id}/restore", withAuth(s.handleRestoreSnapshot))

	// Status and cached reads
	mux.Handle("GET /api/v1/status", withAuth(s.handleStatus))
	mux.Handle("GET /api/v1/tables/{table}/rows", withAuth(s.handleGetRows))

	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)

	cleanup := func() {
		rl.Stop()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type api struct {
	pipeline *core.Pipeline
	tables   *cache.TableCache
	cfg      *ServerConfig
	logger   *slog.Logger
}

// handlePostCommand accepts either free text or an already structured
// command. When both are present the structured command wins.
func (s *api) handlePostCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string          `json:"text"`
		Command *models.Command `json:"command"`
	}
	if err := readJSON(r, s.cfg.MaxRequestBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	var (
		res *models.Result
		err error
	)
	switch {
	case req.Command != nil:
		res, err = s.pipeline.ExecuteCommand(r.Context(), req.Command)
	case req.Text != "":
		res, err = s.pipeline.ExecuteText(r.Context(), req.Text)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "text or command is required"})
		return
	}
	s.writeResult(w, res, err)
}

func (s *api) handleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.ConfirmOperation(r.Context(), r.PathValue("id"))
	s.writeResult(w, res, err)
}

func (s *api) handleCancel(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.CancelOperation(r.PathValue("id"))
	s.writeResult(w, res, err)
}

func (s *api) handleRevert(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.RevertChange(r.Context(), r.PathValue("id"))
	s.writeResult(w, res, err)
}

func (s *api) handleListChanges(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	changes, err := s.pipeline.RecentChanges(limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *api) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.pipeline.ListSnapshots()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *api) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := readJSON(r, s.cfg.MaxRequestBody, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}

	res, err := s.pipeline.CreateSnapshot(r.Context(), req.Description)
	s.writeResult(w, res, err)
}

func (s *api) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.RestoreSnapshot(r.Context(), r.PathValue("id"))
	s.writeResult(w, res, err)
}

func (s *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.pipeline.GetStatus()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *api) handleGetRows(w http.ResponseWriter, r *http.Request) {
	table := models.Table(r.PathValue("table"))
	if !table.Valid() || table == models.TableAll {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": fmt.Sprintf("table %q not found", table),
		})
		return
	}

	rows, err := s.tables.GetRows(r.Context(), table)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   table,
		"columns": models.Columns[table],
		"rows":    rows,
	})
}

// writeResult maps a pipeline Result to HTTP. The pipeline reports expected
// failures (parse miss, unknown target, expired pending) in the Result;
// only infrastructure faults arrive as errors.
func (s *api) writeResult(w http.ResponseWriter, res *models.Result, err error) {
	if err != nil {
		s.internalErrorBare(w, err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	} else if res.ConfirmationRequired {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *api) internalError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := r.Context().Value(contextKeyRequestID).(string)
	s.logger.Error("request failed", "error", err, "request_id", reqID)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
}

func (s *api) internalErrorBare(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error", "message": err.Error()})
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
