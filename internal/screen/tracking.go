// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package screen

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/thanhnd-MKV/iva-console/internal/apiclient"
	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/livechannel"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/view"
)

// trackingSnapshot is the backend's paginated event listing.
type trackingSnapshot struct {
	Events []view.TrackingPoint `json:"events"`
}

// TrackingConfig wires a TrackingScreen.
type TrackingConfig struct {
	Client *apiclient.Client
	Live   *livechannel.Manager
	Buffer *view.MergeBuffer

	// Channel is the live channel name carrying tracking deltas.
	Channel string

	// SnapshotPath is the backend path serving the initial page.
	SnapshotPath string

	Registry *errlog.Registry
}

// TrackingScreen merges the tracking endpoint's paginated snapshot with the
// live delta channel into its MergeBuffer. It renders nothing; the browser
// surface reads the buffer's projections.
type TrackingScreen struct {
	client       *apiclient.Client
	live         *livechannel.Manager
	buffer       *view.MergeBuffer
	channel      string
	snapshotPath string
	binder       *Binder

	mu     sync.Mutex
	banner *errlog.Record
}

// NewTrackingScreen builds the screen and its Binder together, since the
// screen registers its live subscription with the Binder during activation.
func NewTrackingScreen(cfg TrackingConfig) (*TrackingScreen, *Binder) {
	s := &TrackingScreen{
		client:       cfg.Client,
		live:         cfg.Live,
		buffer:       cfg.Buffer,
		channel:      cfg.Channel,
		snapshotPath: cfg.SnapshotPath,
	}
	s.binder = NewBinder("tracking", s, cfg.Registry)
	return s, s.binder
}

// Buffer exposes the working set for the rendering surface.
func (s *TrackingScreen) Buffer() *view.MergeBuffer {
	return s.buffer
}

// GlobalBanner returns the current global error, if one is displayed.
func (s *TrackingScreen) GlobalBanner() (errlog.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner == nil {
		return errlog.Record{}, false
	}
	return *s.banner, true
}

// OnInit implements Screen.
func (s *TrackingScreen) OnInit(ctx context.Context) error {
	return nil
}

// OnActivate implements Screen: loads the snapshot page and attaches to the
// live channel. The subscription is tracked so the Binder disposes it at
// deactivation.
func (s *TrackingScreen) OnActivate(ctx context.Context) error {
	if err := s.loadSnapshot(ctx); err != nil {
		return err
	}

	deltas, dispose, err := s.live.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.binder.Track(dispose)

	go s.consume(deltas)
	return nil
}

// OnDeactivate implements Screen. The Binder has already disposed the live
// subscription; the consume goroutine drains out on its closed channel.
func (s *TrackingScreen) OnDeactivate() {
	s.mu.Lock()
	s.banner = nil
	s.mu.Unlock()
}

// OnRetry implements Screen: reloads the snapshot after a failure.
func (s *TrackingScreen) OnRetry(ctx context.Context) error {
	return s.loadSnapshot(ctx)
}

// HandleGlobalError implements GlobalErrorSink.
func (s *TrackingScreen) HandleGlobalError(update errlog.GlobalUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !update.Present {
		s.banner = nil
		return
	}
	rec := update.Record
	s.banner = &rec
}

func (s *TrackingScreen) loadSnapshot(ctx context.Context) error {
	resp, err := s.client.Get(ctx, s.snapshotPath)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot trackingSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.buffer.LoadSnapshot(snapshot.Events)
	return nil
}

func (s *TrackingScreen) consume(deltas <-chan livechannel.Envelope) {
	for env := range deltas {
		point, err := view.DecodeTrackingPoint(env.Payload)
		if err != nil {
			logging.Debug().Err(err).
				Str("event", env.Event).
				Msg("skipping undecodable tracking delta")
			continue
		}
		s.buffer.ApplyDelta(point)
	}
}
