// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/session"
)

func newTestServer(t *testing.T) (*Server, *errlog.Registry, *session.Controller) {
	t.Helper()
	registry := errlog.NewRegistry()
	controller := session.NewController(session.ControllerConfig{
		Credentials: session.NewMemoryCredentialStore(),
		Logout:      func(ctx context.Context) error { return nil },
		Navigator:   noopNavigator{},
		Reloader:    noopReloader{},
		Countdown:   10 * time.Millisecond,
	})
	srv := NewServer(Config{
		Addr:           ":0",
		RateLimit:      1000,
		AllowedOrigins: []string{"*"},
		Registry:       registry,
		Controller:     controller,
	})
	return srv, registry, controller
}

type noopNavigator struct{}

func (noopNavigator) NavigateLogin() error { return nil }

type noopReloader struct{}

func (noopReloader) Reload() error { return nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := get(t, srv.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyReflectsSessionState(t *testing.T) {
	srv, _, controller := newTestServer(t)

	rec := get(t, srv.Handler(), "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready while active, got %d", rec.Code)
	}

	controller.Trigger(session.TriggerHard)
	select {
	case <-controller.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("controller never logged out")
	}

	rec = get(t, srv.Handler(), "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after logout, got %d", rec.Code)
	}
}

func TestErrorsEndpoint(t *testing.T) {
	srv, registry, _ := newTestServer(t)

	registry.Report(errlog.Record{
		ID:          "err-1",
		Message:     "backend down",
		Kind:        errlog.KindServer,
		StatusCode:  502,
		Timestamp:   time.Now().UTC(),
		Displayable: true,
	})

	rec := get(t, srv.Handler(), "/api/v1/errors")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Errors []errlog.Record `json:"errors"`
		Global *errlog.Record  `json:"global"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Errors) != 1 || payload.Errors[0].ID != "err-1" {
		t.Errorf("unexpected errors payload: %+v", payload.Errors)
	}
	if payload.Global == nil || payload.Global.ID != "err-1" {
		t.Errorf("expected global slot in payload, got %+v", payload.Global)
	}
}

func TestSessionEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := get(t, srv.Handler(), "/api/v1/session")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["state"] != "active" {
		t.Errorf("expected active state, got %v", payload["state"])
	}
}

func TestLogLevelEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	// Restore the configured level when the test is done.
	t.Cleanup(func() { logging.SetLevelString("info") })

	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/loglevel", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := put(`{"level":"debug"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid level, got %d", rec.Code)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", zerolog.GlobalLevel())
	}

	if rec := put(`{"level":"shouty"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown level, got %d", rec.Code)
	}
	if rec := put(`not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := get(t, srv.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected prometheus exposition output")
	}
}
