// Package web provides the HTTP API and status page for the gate daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gmulz/viam-automated-gate/internal/command"
	"github.com/gmulz/viam-automated-gate/internal/history"
	"github.com/gmulz/viam-automated-gate/internal/logging"
	"github.com/gmulz/viam-automated-gate/internal/status"
)

// maxCommandBody bounds command request bodies. Commands are tiny.
const maxCommandBody = 4 * 1024

// Dispatcher executes decoded command payloads.
type Dispatcher interface {
	Dispatch(ctx context.Context, source string, cmd map[string]any) (map[string]any, error)
}

// Server serves the gate API and status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	dispatcher Dispatcher
	history    history.Repository // nil when history is disabled
	logger     *logging.Logger
}

// New creates a Server. History may be nil.
func New(addr string, tracker *status.Tracker, dispatcher Dispatcher, hist history.Repository, logger *logging.Logger) *Server {
	s := &Server{
		tracker:    tracker,
		dispatcher: dispatcher,
		history:    hist,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/command", s.handleCommand)
		r.Get("/status", s.handleStatus)
		r.Get("/position", s.handlePosition)
		r.Get("/history", s.handleHistory)
	})

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleCommand decodes the command body and executes it. Busy rejections
// map to 409, unknown commands to 400.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd map[string]any
	body := http.MaxBytesReader(w, r.Body, maxCommandBody)
	if err := json.NewDecoder(body).Decode(&cmd); err != nil {
		writeBadRequest(w, "malformed command payload")
		return
	}

	resp, err := s.dispatcher.Dispatch(r.Context(), "http", cmd)
	if errors.Is(err, command.ErrInvalidCommand) {
		writeBadRequest(w, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("command failed", "error", err)
		writeInternalError(w, "command failed")
		return
	}

	if resp["status"] == "busy" {
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusJSON(s.tracker.Snapshot()))
}

// handlePosition reads the sensor live rather than echoing the tracker.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	resp, err := s.dispatcher.Dispatch(r.Context(), "http", map[string]any{"position": true})
	if err != nil {
		s.logger.Error("position read failed", "error", err)
		writeInternalError(w, "position read failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "operation history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		writeInternalError(w, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": entries,
		"count":      len(entries),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}
