// Package stats serves read-only scheduler statistics over HTTP.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sugawarayuuta/sonnet"

	"github.com/kestrelos/preempt/sched/preempt"
)

// Source yields a point-in-time view of scheduler counters.
type Source interface {
	Snapshot() preempt.Snapshot
}

// Server exposes GET /api/v1/stats and GET /healthz.
type Server struct {
	router    chi.Router
	src       Source
	logger    *slog.Logger
	startTime time.Time
	httpSrv   *http.Server
}

// NewServer builds a stats server bound to addr.
func NewServer(addr string, src Source, logger *slog.Logger) *Server {
	s := &Server{
		src:       src,
		logger:    logger.With("component", "stats"),
		startTime: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/v1/stats", s.handleStats)
	s.router = r

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("stats server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		UptimeS: int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.src.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonnet.Marshal(v)
	if err != nil {
		s.logger.Error("marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("write response", "error", err)
	}
}
