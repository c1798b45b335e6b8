// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package screen

import (
	"context"
	"fmt"
	"sync"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
)

// Screen is the capability contract a console screen implements. The Binder
// drives these hooks; screens never call each other's.
type Screen interface {
	// OnInit runs once, before the first activation.
	OnInit(ctx context.Context) error

	// OnActivate runs each time the screen becomes visible. Subscriptions
	// taken here must be registered with the Binder via Track.
	OnActivate(ctx context.Context) error

	// OnDeactivate runs when the screen leaves view, after the Binder has
	// disposed every tracked subscription.
	OnDeactivate()

	// OnRetry is the screen's local recovery for a failed operation.
	OnRetry(ctx context.Context) error
}

// GlobalErrorSink is optionally implemented by screens that render the
// global error banner themselves.
type GlobalErrorSink interface {
	HandleGlobalError(update errlog.GlobalUpdate)
}

// Binder composes a Screen with the error registry and enforces the
// lifecycle contract. One Binder per screen instance.
type Binder struct {
	name     string
	screen   Screen
	registry *errlog.Registry

	mu          sync.Mutex
	initialized bool
	active      bool
	disposers   []func()
	cancel      context.CancelFunc
}

// NewBinder wires screen to registry. name appears in logs only.
func NewBinder(name string, s Screen, registry *errlog.Registry) *Binder {
	return &Binder{name: name, screen: s, registry: registry}
}

// Activate brings the screen into view: clears any stale global error,
// subscribes to the global feed, and runs OnInit (first time) and
// OnActivate. Activating an already-active screen is an error.
func (b *Binder) Activate(ctx context.Context) error {
	b.mu.Lock()
	if b.active {
		b.mu.Unlock()
		return fmt.Errorf("screen %s: already active", b.name)
	}
	b.active = true
	needInit := !b.initialized
	b.initialized = true

	activeCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	// A banner left over from a previous screen must not greet the
	// operator here.
	b.registry.ClearGlobal()

	updates, dispose := b.registry.SubscribeGlobal()
	b.disposers = append(b.disposers, dispose)
	b.mu.Unlock()

	if sink, ok := b.screen.(GlobalErrorSink); ok {
		go func() {
			for {
				select {
				case <-activeCtx.Done():
					return
				case update, ok := <-updates:
					if !ok {
						return
					}
					sink.HandleGlobalError(update)
				}
			}
		}()
	}

	if needInit {
		if err := b.screen.OnInit(activeCtx); err != nil {
			b.deactivateLocked()
			return fmt.Errorf("screen %s: init: %w", b.name, err)
		}
	}
	if err := b.screen.OnActivate(activeCtx); err != nil {
		b.deactivateLocked()
		return fmt.Errorf("screen %s: activate: %w", b.name, err)
	}

	logging.Debug().Str("screen", b.name).Msg("screen activated")
	return nil
}

// Track registers a subscription disposer taken during OnActivate. The
// Binder calls every tracked disposer at deactivation, exactly once.
func (b *Binder) Track(dispose func()) {
	if dispose == nil {
		return
	}
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		// Nothing to attach to; dispose immediately rather than leak.
		dispose()
		return
	}
	b.disposers = append(b.disposers, dispose)
	b.mu.Unlock()
}

// Deactivate takes the screen out of view: disposes every tracked
// subscription, clears the global error, and runs OnDeactivate. Safe to
// call when already inactive.
func (b *Binder) Deactivate() {
	if !b.deactivateLocked() {
		return
	}
	b.screen.OnDeactivate()
	logging.Debug().Str("screen", b.name).Msg("screen deactivated")
}

// deactivateLocked releases resources and reports whether the screen was
// active.
func (b *Binder) deactivateLocked() bool {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return false
	}
	b.active = false
	disposers := b.disposers
	b.disposers = nil
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, dispose := range disposers {
		dispose()
	}
	b.registry.ClearGlobal()
	return true
}

// Retry delegates to the screen's local recovery handler.
func (b *Binder) Retry(ctx context.Context) error {
	return b.screen.OnRetry(ctx)
}

// Active reports whether the screen is currently in view.
func (b *Binder) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}
