// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the console core:
// - request pipeline latency and failure classification
// - error registry occupancy and feed health
// - session invalidation flow
// - live channel connections and delivery
// - view merge buffer activity

var (
	// Request Pipeline Metrics
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of requests through the pipeline",
		},
		[]string{"method", "status_class"}, // status_class: "2xx".."5xx", "network"
	)

	PipelineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	PipelineBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	PipelineBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// Error Registry Metrics
	ErrorsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errlog_records_reported_total",
			Help: "Total number of classified records reported to the registry",
		},
		[]string{"kind"},
	)

	ErrorsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "errlog_records_evicted_total",
			Help: "Total number of records evicted past the registry cap",
		},
	)

	FeedUpdatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errlog_feed_updates_dropped_total",
			Help: "Total number of feed updates dropped on slow subscribers",
		},
		[]string{"feed"}, // "list", "global"
	)

	// Session Metrics
	SessionInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_invalidations_total",
			Help: "Total number of invalidation flows entered",
		},
		[]string{"trigger"}, // "hard", "soft", "expiry"
	)

	SessionTeardownSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_teardown_steps_total",
			Help: "Total number of teardown step executions",
		},
		[]string{"step", "result"}, // step: wipe, logout, navigate, reload
	)

	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_state",
			Help: "Current session state (0=active, 1=invalidation_pending, 2=logged_out)",
		},
	)

	// Live Channel Metrics
	ChannelConnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livechannel_connects_total",
			Help: "Total number of transport connections opened",
		},
		[]string{"channel", "kind"}, // kind: "initial", "reconnect"
	)

	ChannelSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livechannel_subscribers",
			Help: "Current number of subscribers per channel",
		},
		[]string{"channel"},
	)

	ChannelEnvelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livechannel_envelopes_total",
			Help: "Total number of envelopes received per channel",
		},
		[]string{"channel"},
	)

	ChannelDecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livechannel_decode_failures_total",
			Help: "Total number of frames that failed envelope decoding",
		},
		[]string{"channel"},
	)

	// View Merge Buffer Metrics
	DeltasAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_deltas_accepted_total",
			Help: "Total number of live deltas merged into a working set",
		},
		[]string{"screen"},
	)

	DeltasDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_deltas_discarded_total",
			Help: "Total number of live deltas rejected before merging",
		},
		[]string{"screen", "reason"}, // reason: "out_of_range"
	)

	DeltasUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_deltas_upserted_total",
			Help: "Total number of deltas that overwrote an existing point",
		},
		[]string{"screen"},
	)

	ToastsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_toasts_emitted_total",
			Help: "Total number of event toasts shown",
		},
		[]string{"screen"},
	)

	ToastsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_toasts_suppressed_total",
			Help: "Total number of toasts suppressed by rate limiting",
		},
		[]string{"screen"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordPipelineRequest records one pipeline request outcome.
func RecordPipelineRequest(method, statusClass string, duration time.Duration) {
	PipelineRequestsTotal.WithLabelValues(method, statusClass).Inc()
	PipelineRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change and updates
// the state gauge.
func RecordBreakerTransition(from, to string) {
	PipelineBreakerTransitions.WithLabelValues(from, to).Inc()
	PipelineBreakerState.Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordErrorReported records a registry insertion by kind.
func RecordErrorReported(kind string) {
	ErrorsReported.WithLabelValues(kind).Inc()
}

// RecordErrorEvicted records an eviction past the registry cap.
func RecordErrorEvicted() {
	ErrorsEvicted.Inc()
}

// RecordFeedDropped records a feed update dropped on a slow subscriber.
func RecordFeedDropped(feed string) {
	FeedUpdatesDropped.WithLabelValues(feed).Inc()
}

// RecordSessionInvalidation records an invalidation flow entry by trigger.
func RecordSessionInvalidation(trigger string) {
	SessionInvalidations.WithLabelValues(trigger).Inc()
}

// RecordTeardownStep records one teardown step outcome.
func RecordTeardownStep(step string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	SessionTeardownSteps.WithLabelValues(step, result).Inc()
}

// SetSessionState updates the session state gauge.
func SetSessionState(state float64) {
	SessionState.Set(state)
}

// RecordChannelConnect records a transport connection being established.
func RecordChannelConnect(channel string, reconnect bool) {
	kind := "initial"
	if reconnect {
		kind = "reconnect"
	}
	ChannelConnects.WithLabelValues(channel, kind).Inc()
}

// SetChannelSubscribers updates the per-channel subscriber gauge.
func SetChannelSubscribers(channel string, n int) {
	ChannelSubscribers.WithLabelValues(channel).Set(float64(n))
}

// RecordEnvelope records one received envelope.
func RecordEnvelope(channel string) {
	ChannelEnvelopes.WithLabelValues(channel).Inc()
}

// RecordDecodeFailure records a frame that failed envelope decoding.
func RecordDecodeFailure(channel string) {
	ChannelDecodeFailures.WithLabelValues(channel).Inc()
}

// RecordDeltaAccepted records a delta merged into a screen's working set.
func RecordDeltaAccepted(screen string) {
	DeltasAccepted.WithLabelValues(screen).Inc()
}

// RecordDeltaDiscarded records a delta rejected before merging.
func RecordDeltaDiscarded(screen, reason string) {
	DeltasDiscarded.WithLabelValues(screen, reason).Inc()
}

// RecordDeltaUpserted records a delta that overwrote an existing point.
func RecordDeltaUpserted(screen string) {
	DeltasUpserted.WithLabelValues(screen).Inc()
}

// RecordToast records a toast emission or suppression.
func RecordToast(screen string, emitted bool) {
	if emitted {
		ToastsEmitted.WithLabelValues(screen).Inc()
	} else {
		ToastsSuppressed.WithLabelValues(screen).Inc()
	}
}
