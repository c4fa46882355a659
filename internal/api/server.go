// Package api exposes the health/metrics/status HTTP surface and drives the
// rebalancer's halt/resume/rebalance-at-market operations, standing in for
// balancer.py's interactive keypress UI (spec's dropped interactive
// surface, supplemented per SPEC_FULL §3).
//
// Grounded on the teacher's internal/api/server.go (mux + http.Server
// lifecycle) with the websocket dashboard hub dropped: this spec has no
// per-market event stream to broadcast, only a single pair's status.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rebalancer/internal/config"
	"rebalancer/internal/rebalancer"
)

// Controller is the subset of the engine the API drives directly.
type Controller interface {
	Halt(ctx context.Context)
	Resume()
	RebalanceAtMarket(ctx context.Context) error
	State() rebalancer.State
	WaitingInfo() string
}

// Server runs the health/status/control HTTP surface.
type Server struct {
	cfg      config.DashboardConfig
	ctrl     Controller
	metricsH http.Handler
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds the API server. metricsHandler is typically
// promhttp.HandlerFor(metrics.Registry, ...).
func NewServer(cfg config.DashboardConfig, ctrl Controller, metricsHandler http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{cfg: cfg, ctrl: ctrl, metricsH: metricsHandler, logger: logger.With("component", "api-server")}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/control/halt", s.handleHalt)
	mux.HandleFunc("/control/resume", s.handleResume)
	mux.HandleFunc("/control/rebalance", s.handleRebalance)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the HTTP server until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"state":        s.ctrl.State(),
		"waiting_info": s.ctrl.WaitingInfo(),
	})
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Halt(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Resume()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.RebalanceAtMarket(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
