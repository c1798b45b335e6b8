// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/session"
)

type fakeInvalidator struct {
	mu       sync.Mutex
	triggers []session.Trigger
}

func (f *fakeInvalidator) Trigger(reason session.Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, reason)
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func (f *fakeInvalidator) last() session.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.triggers) == 0 {
		return ""
	}
	return f.triggers[len(f.triggers)-1]
}

type pipelineFixture struct {
	client      *Client
	registry    *errlog.Registry
	invalidator *fakeInvalidator
	store       *session.MemoryCredentialStore
}

func newFixture(t *testing.T, baseURL string) *pipelineFixture {
	t.Helper()
	registry := errlog.NewRegistry()
	invalidator := &fakeInvalidator{}
	store := session.NewMemoryCredentialStore()

	client := NewClient(Config{
		BaseURL:     baseURL,
		Credentials: store,
		Classifier:  errlog.NewClassifier([]int{40101, 40102}),
		Registry:    registry,
		Invalidator: invalidator,
	})
	return &pipelineFixture{
		client:      client,
		registry:    registry,
		invalidator: invalidator,
		store:       store,
	}
}

func TestClientAttachesCredentialHeader(t *testing.T) {
	var gotHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get(DefaultHeaderName))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)

	t.Run("absent credential sends unauthenticated", func(t *testing.T) {
		resp, err := f.client.Get(context.Background(), "/events")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
		if got := gotHeader.Load().(string); got != "" {
			t.Errorf("expected no credential header, got %q", got)
		}
	})

	t.Run("stored credential is attached", func(t *testing.T) {
		f.store.Store(context.Background(), "tok-123")
		resp, err := f.client.Get(context.Background(), "/events")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
		if got := gotHeader.Load().(string); got != "tok-123" {
			t.Errorf("expected credential header tok-123, got %q", got)
		}
	})
}

func TestClientPassesSuccessThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[1,2,3]}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	resp, err := f.client.Get(context.Background(), "/events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	// The classification peek must not consume the caller's body.
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"items":[1,2,3]}` {
		t.Errorf("body not replayable after classification: %q", body)
	}
	if len(f.registry.Errors()) != 0 {
		t.Error("successful response produced a registry record")
	}
}

func TestClientDualDeliveryOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.client.Get(context.Background(), "/events")
	if err == nil {
		t.Fatal("expected error for 502")
	}

	// Path 1: typed error to the caller.
	var apiErr *errlog.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *errlog.APIError, got %T", err)
	}
	if apiErr.Kind() != errlog.KindServer {
		t.Errorf("expected server kind, got %s", apiErr.Kind())
	}

	// Path 2: same record in the registry.
	records := f.registry.Errors()
	if len(records) != 1 {
		t.Fatalf("expected 1 registry record, got %d", len(records))
	}
	if records[0].ID != apiErr.Record.ID {
		t.Error("registry record and returned error carry different records")
	}
}

func TestClientClassifiesTransportFailureAsNetwork(t *testing.T) {
	// A closed server guarantees a transport-level failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.client.Get(context.Background(), "/events")
	if err == nil {
		t.Fatal("expected transport error")
	}

	var apiErr *errlog.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *errlog.APIError, got %T", err)
	}
	if apiErr.Kind() != errlog.KindNetwork {
		t.Errorf("expected network kind, got %s", apiErr.Kind())
	}
	if apiErr.Record.StatusCode != 0 {
		t.Errorf("expected status 0, got %d", apiErr.Record.StatusCode)
	}
}

func TestClientSoftInvalidationPassesResponseThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40101,"message":"sso session revoked"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	resp, err := f.client.Get(context.Background(), "/events")
	if err != nil {
		t.Fatalf("soft invalidation must not fail the call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected original 200 passed through, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"code":40101,"message":"sso session revoked"}` {
		t.Errorf("expected original body passed through, got %q", body)
	}

	if f.invalidator.count() != 1 {
		t.Fatalf("expected exactly 1 controller trigger, got %d", f.invalidator.count())
	}
	if f.invalidator.last() != session.TriggerSoft {
		t.Errorf("expected soft trigger, got %s", f.invalidator.last())
	}
	if len(f.registry.Errors()) != 0 {
		t.Error("soft invalidation produced a displayable registry entry")
	}
}

func TestClientHardInvalidationOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.client.Get(context.Background(), "/events")
	if err == nil {
		t.Fatal("expected error for 401")
	}

	if f.invalidator.last() != session.TriggerHard {
		t.Errorf("expected hard trigger, got %q", f.invalidator.last())
	}
	records := f.registry.Errors()
	if len(records) != 1 {
		t.Fatalf("expected 1 registry record, got %d", len(records))
	}
	if records[0].Displayable {
		t.Error("invalidating record must not be displayable")
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	resp, err := f.client.Get(context.Background(), "/events")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	resp.Body.Close()

	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 transport attempts, got %d", got)
	}
	if len(f.registry.Errors()) != 0 {
		t.Error("a retried 429 must not reach the registry")
	}
}

func TestClientClientErrorMessageFromBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":40400,"message":"camera not found"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.client.Get(context.Background(), "/cameras/77")
	var apiErr *errlog.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *errlog.APIError, got %v", err)
	}
	if apiErr.Record.Message != "camera not found" {
		t.Errorf("expected body-derived message, got %q", apiErr.Record.Message)
	}
	if apiErr.Kind() != errlog.KindClient {
		t.Errorf("expected client kind, got %s", apiErr.Kind())
	}
}
