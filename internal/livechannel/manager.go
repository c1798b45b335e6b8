// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package livechannel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/metrics"
)

const (
	// DefaultInitialBackoff and DefaultMaxBackoff bound the reconnect policy.
	// Retries continue indefinitely at the cap; a tight unbounded retry loop
	// is never acceptable.
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second

	// subscriberBuffer absorbs short consumer stalls without backpressuring
	// the shared reader.
	subscriberBuffer = 32

	metadataEvent = "event"
)

// Envelope is one live notification as delivered to subscribers. Payload is
// opaque JSON; interpretation belongs to the subscriber.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// wireFrame is the transport framing: named events with a JSON payload.
type wireFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Config wires a Manager.
type Config struct {
	// URL is the transport base; the channel name is appended as the last
	// path segment.
	URL string

	// Dialer defaults to the websocket dialer when nil.
	Dialer Dialer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type channelState struct {
	refs   int
	cancel context.CancelFunc
}

// Manager multiplexes live channels: one transport connection per channel
// name regardless of subscriber count. It implements suture.Service.
type Manager struct {
	baseURL        string
	dialer         Dialer
	initialBackoff time.Duration
	maxBackoff     time.Duration

	pubsub *gochannel.GoChannel

	mu       sync.Mutex
	channels map[string]*channelState

	rootCtx    context.Context
	rootCancel context.CancelFunc
	closeOnce  sync.Once
}

// NewManager builds a Manager. Transport connections are dialed lazily on
// first subscription, not here.
func NewManager(cfg Config) *Manager {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewWebsocketDialer(nil)
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	maxB := cfg.MaxBackoff
	if maxB <= 0 {
		maxB = DefaultMaxBackoff
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Manager{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		dialer:         dialer,
		initialBackoff: initial,
		maxBackoff:     maxB,
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: subscriberBuffer,
		}, newWatermillLogger()),
		channels:   make(map[string]*channelState),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

// Subscribe attaches to a named channel. The first subscriber for a channel
// opens the transport; later subscribers share it. The returned disposer is
// mandatory at teardown: it detaches this subscriber and, when it was the
// last one, closes the transport. Calling it more than once is safe.
func (m *Manager) Subscribe(ctx context.Context, channel string) (<-chan Envelope, func(), error) {
	if channel == "" {
		return nil, nil, fmt.Errorf("livechannel: empty channel name")
	}

	subCtx, subCancel := context.WithCancel(ctx)
	msgs, err := m.pubsub.Subscribe(subCtx, channel)
	if err != nil {
		subCancel()
		return nil, nil, fmt.Errorf("livechannel: subscribe %q: %w", channel, err)
	}

	m.mu.Lock()
	st, ok := m.channels[channel]
	if !ok {
		connCtx, connCancel := context.WithCancel(m.rootCtx)
		st = &channelState{cancel: connCancel}
		m.channels[channel] = st
		go m.runChannel(connCtx, channel)
	}
	st.refs++
	refs := st.refs
	m.mu.Unlock()
	metrics.SetChannelSubscribers(channel, refs)

	out := make(chan Envelope, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			env := Envelope{
				Channel: channel,
				Event:   msg.Metadata.Get(metadataEvent),
				Payload: json.RawMessage(msg.Payload),
			}
			msg.Ack()
			select {
			case out <- env:
			case <-subCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			subCancel()
			m.release(channel)
		})
	}
	return out, dispose, nil
}

// release drops one subscriber reference and tears the transport down when
// the last one leaves.
func (m *Manager) release(channel string) {
	m.mu.Lock()
	st, ok := m.channels[channel]
	if !ok {
		m.mu.Unlock()
		return
	}
	st.refs--
	refs := st.refs
	if refs <= 0 {
		st.cancel()
		delete(m.channels, channel)
	}
	m.mu.Unlock()

	if refs < 0 {
		refs = 0
	}
	metrics.SetChannelSubscribers(channel, refs)
	if refs == 0 {
		logging.Info().Str("channel", channel).Msg("last subscriber left, closing live transport")
	}
}

// runChannel owns the shared transport connection for one channel: dial,
// read, publish, reconnect with backoff, until the channel is released.
func (m *Manager) runChannel(ctx context.Context, channel string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.initialBackoff
	bo.MaxInterval = m.maxBackoff
	bo.MaxElapsedTime = 0 // retry forever; the cap bounds the interval

	url := m.baseURL + "/" + channel
	first := true

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dialer.Dial(ctx, url)
		if err != nil {
			wait := bo.NextBackOff()
			logging.Warn().Err(err).
				Str("channel", channel).
				Dur("retry_in", wait).
				Msg("live channel dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		metrics.RecordChannelConnect(channel, !first)
		if first {
			logging.Info().Str("channel", channel).Msg("live channel connected")
		} else {
			logging.Info().Str("channel", channel).Msg("live channel reconnected")
		}
		first = false
		bo.Reset()

		m.readLoop(ctx, channel, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		logging.Warn().
			Str("channel", channel).
			Dur("retry_in", wait).
			Msg("live channel transport lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// readLoop drains one connection, publishing decoded frames to the channel's
// fanout topic. Returns on transport error or context cancellation.
func (m *Manager) readLoop(ctx context.Context, channel string, conn Conn) {
	// Unblock the pending read when the channel is released.
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readerDone:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			metrics.RecordDecodeFailure(channel)
			logging.Debug().Str("channel", channel).Msg("discarding undecodable live frame")
			continue
		}

		metrics.RecordEnvelope(channel)
		msg := message.NewMessage(watermill.NewUUID(), []byte(frame.Payload))
		msg.Metadata.Set(metadataEvent, frame.Event)
		if err := m.pubsub.Publish(channel, msg); err != nil {
			// Publish only fails once the pub/sub is closed; stop reading.
			return
		}
	}
}

// Serve implements suture.Service: the manager runs until the supervision
// tree shuts it down, then closes every transport and the fanout.
func (m *Manager) Serve(ctx context.Context) error {
	<-ctx.Done()
	m.Close()
	return ctx.Err()
}

// Close tears down all channels and the pub/sub fanout. Idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.rootCancel()
		m.mu.Lock()
		m.channels = make(map[string]*channelState)
		m.mu.Unlock()
		if err := m.pubsub.Close(); err != nil {
			logging.Warn().Err(err).Msg("live channel fanout close")
		}
	})
}

func (m *Manager) String() string { return "livechannel.Manager" }
