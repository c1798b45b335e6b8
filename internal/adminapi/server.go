// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package adminapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/session"
)

const shutdownGrace = 10 * time.Second

// Config wires the admin server.
type Config struct {
	Addr string

	// RateLimit is requests per minute per client IP.
	RateLimit int

	AllowedOrigins []string

	Registry   *errlog.Registry
	Controller *session.Controller
}

// Server is the operational HTTP surface. It implements suture.Service.
type Server struct {
	cfg    Config
	router http.Handler
}

// NewServer builds the routed server without binding the listener; Serve
// does that.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
	}))
	if s.cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/errors", s.handleErrors)
		r.Get("/session", s.handleSession)
		r.Put("/loglevel", s.handleLogLevel)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports unready once the session reaches its terminal state:
// the daemon keeps serving probes but needs a restart with fresh
// credentials to do useful work.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	state := s.cfg.Controller.State()
	if state == session.StateLoggedOut {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unready",
			"session": state.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"session": state.String(),
	})
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	records := s.cfg.Registry.Errors()
	payload := struct {
		Errors []errlog.Record `json:"errors"`
		Global *errlog.Record  `json:"global,omitempty"`
	}{Errors: records}

	if global, ok := s.cfg.Registry.GlobalError(); ok {
		payload.Global = &global
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"state": s.cfg.Controller.State().String()}
	if deadline, pending := s.cfg.Controller.Deadline(); pending {
		payload["deadline"] = deadline.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, payload)
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "disabled": true,
}

// handleLogLevel changes the global log level at runtime, for debugging a
// live daemon without a restart. The change does not persist.
func (s *Server) handleLogLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !logLevels[req.Level] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown level"})
		return
	}

	logging.SetLevelString(req.Level)
	logging.Info().Str("level", req.Level).Msg("log level changed")
	writeJSON(w, http.StatusOK, map[string]string{"level": req.Level})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("admin response encode failed")
	}
}

// Serve implements suture.Service: binds the listener and runs until the
// context is cancelled, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.cfg.Addr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("admin server shutdown")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string { return "adminapi.Server" }
