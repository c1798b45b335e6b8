// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package screen

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
)

type stubScreen struct {
	inits       atomic.Int32
	activates   atomic.Int32
	deactivates atomic.Int32
	retries     atomic.Int32
	initErr     error
	activateErr error

	globals chan errlog.GlobalUpdate
}

func newStubScreen() *stubScreen {
	return &stubScreen{globals: make(chan errlog.GlobalUpdate, 8)}
}

func (s *stubScreen) OnInit(ctx context.Context) error {
	s.inits.Add(1)
	return s.initErr
}

func (s *stubScreen) OnActivate(ctx context.Context) error {
	s.activates.Add(1)
	return s.activateErr
}

func (s *stubScreen) OnDeactivate() {
	s.deactivates.Add(1)
}

func (s *stubScreen) OnRetry(ctx context.Context) error {
	s.retries.Add(1)
	return nil
}

func (s *stubScreen) HandleGlobalError(update errlog.GlobalUpdate) {
	s.globals <- update
}

func displayable(id string) errlog.Record {
	return errlog.Record{
		ID:          id,
		Message:     "backend down",
		Kind:        errlog.KindServer,
		StatusCode:  502,
		Timestamp:   time.Now().UTC(),
		Displayable: true,
	}
}

func TestBinderActivateClearsStaleGlobalError(t *testing.T) {
	registry := errlog.NewRegistry()
	registry.Report(displayable("stale"))
	if _, ok := registry.GlobalError(); !ok {
		t.Fatal("precondition: expected a stale global error")
	}

	b := NewBinder("tracking", newStubScreen(), registry)
	if err := b.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer b.Deactivate()

	if _, ok := registry.GlobalError(); ok {
		t.Error("expected stale global error cleared on activation")
	}
}

func TestBinderInitRunsOnce(t *testing.T) {
	registry := errlog.NewRegistry()
	s := newStubScreen()
	b := NewBinder("tracking", s, registry)

	for i := 0; i < 3; i++ {
		if err := b.Activate(context.Background()); err != nil {
			t.Fatalf("activate %d: %v", i, err)
		}
		b.Deactivate()
	}

	if got := s.inits.Load(); got != 1 {
		t.Errorf("expected 1 init across 3 activations, got %d", got)
	}
	if got := s.activates.Load(); got != 3 {
		t.Errorf("expected 3 activations, got %d", got)
	}
	if got := s.deactivates.Load(); got != 3 {
		t.Errorf("expected 3 deactivations, got %d", got)
	}
}

func TestBinderForwardsGlobalErrors(t *testing.T) {
	registry := errlog.NewRegistry()
	s := newStubScreen()
	b := NewBinder("tracking", s, registry)

	if err := b.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer b.Deactivate()

	registry.Report(displayable("err-1"))

	select {
	case update := <-s.globals:
		if !update.Present || update.Record.ID != "err-1" {
			t.Errorf("unexpected update: %+v", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("global error never reached the screen")
	}
}

func TestBinderDeactivateDisposesTrackedSubscriptions(t *testing.T) {
	registry := errlog.NewRegistry()
	b := NewBinder("tracking", newStubScreen(), registry)

	if err := b.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var disposed atomic.Int32
	b.Track(func() { disposed.Add(1) })
	b.Track(func() { disposed.Add(1) })

	b.Deactivate()
	if got := disposed.Load(); got != 2 {
		t.Errorf("expected both tracked disposers called, got %d", got)
	}

	// The registry-side subscription must be gone too.
	if got := registry.SubscriberCount(); got != 0 {
		t.Errorf("expected 0 registry subscribers after deactivation, got %d", got)
	}

	// Deactivating again is a no-op.
	b.Deactivate()
	if got := disposed.Load(); got != 2 {
		t.Errorf("second deactivate re-ran disposers: %d", got)
	}
}

func TestBinderTrackWhileInactiveDisposesImmediately(t *testing.T) {
	b := NewBinder("tracking", newStubScreen(), errlog.NewRegistry())

	var disposed atomic.Int32
	b.Track(func() { disposed.Add(1) })
	if got := disposed.Load(); got != 1 {
		t.Errorf("expected immediate disposal while inactive, got %d", got)
	}
}

func TestBinderDoubleActivateFails(t *testing.T) {
	b := NewBinder("tracking", newStubScreen(), errlog.NewRegistry())
	if err := b.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer b.Deactivate()

	if err := b.Activate(context.Background()); err == nil {
		t.Error("expected error on double activation")
	}
}

func TestBinderActivateErrorReleasesResources(t *testing.T) {
	registry := errlog.NewRegistry()
	s := newStubScreen()
	s.activateErr = errors.New("snapshot load failed")
	b := NewBinder("tracking", s, registry)

	if err := b.Activate(context.Background()); err == nil {
		t.Fatal("expected activation error")
	}
	if b.Active() {
		t.Error("expected binder inactive after failed activation")
	}
	if got := registry.SubscriberCount(); got != 0 {
		t.Errorf("expected no leaked subscribers after failed activation, got %d", got)
	}
	if s.deactivates.Load() != 0 {
		t.Error("OnDeactivate must not run for a screen that never activated")
	}
}

func TestBinderRetryDelegates(t *testing.T) {
	s := newStubScreen()
	b := NewBinder("tracking", s, errlog.NewRegistry())
	if err := b.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.retries.Load() != 1 {
		t.Errorf("expected 1 retry, got %d", s.retries.Load())
	}
}
