// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package view

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/metrics"
)

// DefaultPageSize is the table window capacity when none is configured.
const DefaultPageSize = 10

// Toast throttle defaults: at most one toast per interval with a small
// burst, so an event storm does not bury the operator. Suppressed toasts are
// counted but the underlying deltas are still merged.
const (
	defaultToastInterval = time.Second
	defaultToastBurst    = 3
)

// Notifier receives the user-visible toast for each accepted delta. A nil
// Notifier disables toasts; merging is unaffected.
type Notifier interface {
	Toast(summary string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(summary string)

// Toast implements Notifier.
func (f NotifierFunc) Toast(summary string) { f(summary) }

// BufferConfig wires a MergeBuffer.
type BufferConfig struct {
	// Screen names the owning screen in logs and metrics.
	Screen string

	// PageSize bounds the table window. Defaults to DefaultPageSize.
	PageSize int

	Notifier Notifier

	// ToastInterval and ToastBurst tune toast throttling. Zero values take
	// the defaults.
	ToastInterval time.Duration
	ToastBurst    int
}

// MergeBuffer maintains a screen's working set from a paginated snapshot
// plus a live delta stream. All methods are safe for concurrent use.
type MergeBuffer struct {
	screen   string
	pageSize int
	notifier Notifier
	limiter  *rate.Limiter

	mu sync.Mutex

	// mapPoints is the unbounded map projection, sorted ascending by
	// timestamp, unique by EventID.
	mapPoints []TrackingPoint
	byID      map[string]int

	// table is the bounded window, newest first.
	table []TrackingPoint

	page  int
	from  time.Time
	to    time.Time
	total int
}

// NewMergeBuffer creates an empty buffer on page 1 with no range filter.
func NewMergeBuffer(cfg BufferConfig) *MergeBuffer {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	interval := cfg.ToastInterval
	if interval <= 0 {
		interval = defaultToastInterval
	}
	burst := cfg.ToastBurst
	if burst <= 0 {
		burst = defaultToastBurst
	}
	return &MergeBuffer{
		screen:   cfg.Screen,
		pageSize: pageSize,
		notifier: cfg.Notifier,
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		byID:     make(map[string]int),
		page:     1,
	}
}

// LoadSnapshot replaces the working set with a server page. The snapshot's
// arrival order is arbitrary; both projections are rebuilt in their own
// order. The running total resets to the snapshot size.
func (b *MergeBuffer) LoadSnapshot(points []TrackingPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mapPoints = b.mapPoints[:0]
	b.byID = make(map[string]int, len(points))
	for _, p := range points {
		if _, dup := b.byID[p.EventID]; dup {
			continue
		}
		b.byID[p.EventID] = 0 // positions fixed after the sort below
		b.mapPoints = append(b.mapPoints, p)
	}
	b.sortMapLocked()

	// Table: newest first, capped.
	b.table = make([]TrackingPoint, len(b.mapPoints))
	for i, p := range b.mapPoints {
		b.table[len(b.table)-1-i] = p
	}
	if len(b.table) > b.pageSize {
		b.table = b.table[:b.pageSize]
	}

	b.total = len(b.mapPoints)
	logging.Debug().
		Str("screen", b.screen).
		Int("points", len(b.mapPoints)).
		Msg("snapshot loaded")
}

// ApplyDelta merges one live event. Returns true when the delta was
// accepted. Out-of-range deltas are discarded outright, never queued. A
// duplicate EventID overwrites the existing point in place.
func (b *MergeBuffer) ApplyDelta(p TrackingPoint) bool {
	b.mu.Lock()

	if !b.inRangeLocked(p.Timestamp) {
		b.mu.Unlock()
		metrics.RecordDeltaDiscarded(b.screen, "out_of_range")
		return false
	}

	if idx, ok := b.byID[p.EventID]; ok {
		// Idempotent upsert: update fields, never grow the set or move the
		// total counter.
		b.mapPoints[idx] = p
		b.sortMapLocked()
		b.upsertTableLocked(p)
		b.mu.Unlock()
		metrics.RecordDeltaUpserted(b.screen)
		b.notify(p)
		return true
	}

	b.mapPoints = append(b.mapPoints, p)
	b.byID[p.EventID] = len(b.mapPoints) - 1
	b.sortMapLocked()

	// The table only moves while the operator watches page 1; the map
	// always does.
	if b.page == 1 {
		b.table = append([]TrackingPoint{p}, b.table...)
		if len(b.table) > b.pageSize {
			b.table = b.table[:b.pageSize]
		}
	}

	b.total++
	b.mu.Unlock()

	metrics.RecordDeltaAccepted(b.screen)
	b.notify(p)
	return true
}

// SetPage records which table page the operator is viewing. Deltas are
// suppressed from the table (not the map) while page > 1.
func (b *MergeBuffer) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	b.mu.Lock()
	b.page = page
	b.mu.Unlock()
}

// SetRange replaces the active time-range predicate for incoming deltas.
// Zero times are open ends. The existing working set is not re-filtered;
// screens reload their snapshot when the operator changes the range.
func (b *MergeBuffer) SetRange(from, to time.Time) {
	b.mu.Lock()
	b.from = from
	b.to = to
	b.mu.Unlock()
}

// MapPoints returns the map projection, ascending by timestamp.
func (b *MergeBuffer) MapPoints() []TrackingPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TrackingPoint, len(b.mapPoints))
	copy(out, b.mapPoints)
	return out
}

// TableWindow returns the bounded table projection, newest first.
func (b *MergeBuffer) TableWindow() []TrackingPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TrackingPoint, len(b.table))
	copy(out, b.table)
	return out
}

// Total is the running event counter: snapshot size plus every distinct
// accepted delta since. Duplicate upserts do not move it.
func (b *MergeBuffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *MergeBuffer) inRangeLocked(t time.Time) bool {
	if !b.from.IsZero() && t.Before(b.from) {
		return false
	}
	if !b.to.IsZero() && t.After(b.to) {
		return false
	}
	return true
}

// sortMapLocked restores ascending timestamp order and rebuilds the id
// index.
func (b *MergeBuffer) sortMapLocked() {
	sort.SliceStable(b.mapPoints, func(i, j int) bool {
		return b.mapPoints[i].Timestamp.Before(b.mapPoints[j].Timestamp)
	})
	for i, p := range b.mapPoints {
		b.byID[p.EventID] = i
	}
}

// upsertTableLocked refreshes a point already present in the table window.
// Points evicted from the window stay gone; an upsert never re-admits them.
// The refresh happens on any page: unlike a new delta it changes no row
// membership, and skipping it would leave stale fields behind when the
// operator returns to page 1.
func (b *MergeBuffer) upsertTableLocked(p TrackingPoint) {
	for i := range b.table {
		if b.table[i].EventID == p.EventID {
			b.table[i] = p
			return
		}
	}
}

func (b *MergeBuffer) notify(p TrackingPoint) {
	if b.notifier == nil {
		return
	}
	if !b.limiter.Allow() {
		metrics.RecordToast(b.screen, false)
		return
	}
	metrics.RecordToast(b.screen, true)
	b.notifier.Toast(p.Summary())
}
