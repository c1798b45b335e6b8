// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package main is the entry point for the IVA console daemon.
//
// consoled is the session-integrity and live-event core behind a
// surveillance operations console. It wraps every backend call in a
// classifying request pipeline, keeps a bounded shared error registry,
// drives the forced-logout flow when the session is invalidated, and
// multiplexes live event channels to the console's screens.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered load (env > file > defaults)
//  2. Logging: zerolog, JSON or console format
//  3. Credential store: BadgerDB cache, optionally encrypted at rest
//  4. Error registry, classifier, session controller
//  5. Request pipeline with circuit breaker
//  6. Live channel manager, expiry watch, admin HTTP surface
//  7. Supervision tree (suture), serving until SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thanhnd-MKV/iva-console/internal/adminapi"
	"github.com/thanhnd-MKV/iva-console/internal/apiclient"
	"github.com/thanhnd-MKV/iva-console/internal/config"
	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/livechannel"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/metrics"
	"github.com/thanhnd-MKV/iva-console/internal/session"
	"github.com/thanhnd-MKV/iva-console/internal/supervisor"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "consoled: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("backend", cfg.Backend.URL).
		Msg("starting iva console daemon")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	go trackUptime()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credential store, optionally encrypted at rest.
	credentials, closeStore, err := buildCredentialStore(cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := errlog.NewRegistry()
	classifier := errlog.NewClassifier(cfg.Backend.SentinelCodes)

	// The pipeline and the controller reference each other: the pipeline
	// triggers invalidation, the controller's logout step goes back out
	// through the pipeline. A late-bound handle breaks the cycle.
	handle := &controllerHandle{}

	client := apiclient.NewClient(apiclient.Config{
		BaseURL:     cfg.Backend.URL,
		HeaderName:  cfg.Backend.HeaderName,
		Timeout:     cfg.Backend.Timeout,
		Credentials: credentials,
		Classifier:  classifier,
		Registry:    registry,
		Invalidator: handle,
	})

	controller := session.NewController(session.ControllerConfig{
		Credentials: credentials,
		Logout: func(ctx context.Context) error {
			resp, err := client.Post(ctx, "/auth/logout", nil)
			if err != nil {
				return err
			}
			resp.Body.Close()
			return nil
		},
		Navigator: loginNavigator{},
		Reloader:  daemonReloader{stop: stop},
		Countdown: cfg.Session.Countdown,
	})
	handle.controller = controller

	liveManager := livechannel.NewManager(livechannel.Config{
		URL:            cfg.Live.URL,
		InitialBackoff: cfg.Live.InitialBackoff,
		MaxBackoff:     cfg.Live.MaxBackoff,
	})

	adminServer := adminapi.NewServer(adminapi.Config{
		Addr:           cfg.Admin.Addr,
		RateLimit:      cfg.Admin.RateLimit,
		AllowedOrigins: cfg.Admin.AllowedOrigins,
		Registry:       registry,
		Controller:     controller,
	})

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSessionService(session.NewExpiryWatch(credentials, controller))
	tree.AddStreamingService(liveManager)
	tree.AddAdminService(adminServer)

	// A terminal session state ends the process; the outer supervisor
	// restarts it with fresh credentials.
	go func() {
		select {
		case <-controller.Done():
			logging.Warn().Msg("session logged out, shutting down")
			stop()
		case <-rootCtx.Done():
		}
	}()

	err = tree.Serve(rootCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("console daemon stopped")
	return nil
}

// buildCredentialStore selects the BadgerDB-backed store when a path is
// configured and the in-memory store otherwise.
func buildCredentialStore(cfg config.SessionConfig) (session.CredentialStore, func(), error) {
	if cfg.StorePath == "" {
		return session.NewMemoryCredentialStore(), func() {}, nil
	}

	encryptor, err := session.NewCredentialEncryptor(cfg.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("credential encryption: %w", err)
	}
	db, err := session.OpenCredentialDB(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("credential store close")
		}
	}
	return session.NewBadgerCredentialStore(db, encryptor), closeFn, nil
}

// controllerHandle late-binds the session controller into the pipeline.
type controllerHandle struct {
	controller *session.Controller
}

func (h *controllerHandle) Trigger(reason session.Trigger) {
	if h.controller != nil {
		h.controller.Trigger(reason)
	}
}

// loginNavigator is the daemon-side navigation fallback: it emits the
// instruction for attached consoles. The browser surface owns actual
// routing.
type loginNavigator struct{}

func (loginNavigator) NavigateLogin() error {
	logging.Warn().Msg("redirecting operators to login")
	return nil
}

// daemonReloader is the last-resort teardown tier: stop the process so the
// outer supervisor brings it back clean.
type daemonReloader struct {
	stop context.CancelFunc
}

func (r daemonReloader) Reload() error {
	logging.Error().Msg("forcing daemon restart")
	r.stop()
	return nil
}

func trackUptime() {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.AppUptime.Set(time.Since(start).Seconds())
	}
}
