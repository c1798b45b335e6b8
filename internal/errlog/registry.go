// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package errlog

import (
	"sync"

	"github.com/thanhnd-MKV/iva-console/internal/metrics"
)

// DefaultCapacity is the bound on the registry's record list. Inserting past
// the cap evicts the oldest record.
const DefaultCapacity = 50

// feedBuffer is the per-subscriber channel depth. A subscriber that falls
// further behind than this loses updates rather than blocking Report.
const feedBuffer = 16

// GlobalUpdate is one delivery on the global-error feed. Present is false
// when the slot has been cleared.
type GlobalUpdate struct {
	Record  Record
	Present bool
}

type listSubscriber struct {
	ch chan Record
}

type globalSubscriber struct {
	ch chan GlobalUpdate
}

// Registry is the process-wide bounded error log. It is a pure state
// container: it cannot itself fail, and all methods are safe for concurrent
// use.
type Registry struct {
	mu         sync.Mutex
	records    []Record
	capacity   int
	global     *Record
	listSubs   map[uint64]*listSubscriber
	globalSubs map[uint64]*globalSubscriber
	nextSubID  uint64
}

// NewRegistry creates a registry with DefaultCapacity.
func NewRegistry() *Registry {
	return NewRegistryWithCapacity(DefaultCapacity)
}

// NewRegistryWithCapacity creates a registry with an explicit list bound.
func NewRegistryWithCapacity(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity:   capacity,
		listSubs:   make(map[uint64]*listSubscriber),
		globalSubs: make(map[uint64]*globalSubscriber),
	}
}

// Report inserts a record, evicting the oldest entry once the cap is
// exceeded. Displayable records also take the global-error slot. Eviction
// only affects the list; it never retracts an already-delivered global
// notification.
func (r *Registry) Report(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	if len(r.records) > r.capacity {
		r.records = r.records[1:]
		metrics.RecordErrorEvicted()
	}

	metrics.RecordErrorReported(string(rec.Kind))
	r.broadcastRecordLocked(rec)

	if rec.Displayable {
		cp := rec
		r.global = &cp
		r.broadcastGlobalLocked(GlobalUpdate{Record: rec, Present: true})
	}
}

// Acknowledge flips the record's acknowledged flag. Acknowledging the record
// currently in the global slot also clears that slot; acknowledging any
// other record leaves the slot untouched.
func (r *Registry) Acknowledge(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].Acknowledged = true
			break
		}
	}

	if r.global != nil && r.global.ID == id {
		r.global = nil
		r.broadcastGlobalLocked(GlobalUpdate{})
	}
}

// ClearAll empties the record list and the global slot.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	hadGlobal := r.global != nil
	r.records = nil
	r.global = nil
	if hadGlobal {
		r.broadcastGlobalLocked(GlobalUpdate{})
	}
}

// ClearGlobal empties only the global slot. Screens call this on activation
// to discard a stale notification left by a previous screen.
func (r *Registry) ClearGlobal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.global == nil {
		return
	}
	r.global = nil
	r.broadcastGlobalLocked(GlobalUpdate{})
}

// Errors returns a snapshot of the record list, oldest first.
func (r *Registry) Errors() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// GlobalError returns the current global slot contents.
func (r *Registry) GlobalError() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.global == nil {
		return Record{}, false
	}
	return *r.global, true
}

// SubscribeAll attaches a live feed of every reported record. The returned
// disposer must be called when the consumer is torn down; an undisposed
// subscription keeps dispatching to a view no longer rendered.
func (r *Registry) SubscribeAll() (<-chan Record, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	sub := &listSubscriber{ch: make(chan Record, feedBuffer)}
	r.listSubs[id] = sub

	dispose := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.listSubs[id]; ok {
			delete(r.listSubs, id)
			close(sub.ch)
		}
	}
	return sub.ch, dispose
}

// SubscribeGlobal attaches a live feed of global-slot changes. Semantics
// match SubscribeAll.
func (r *Registry) SubscribeGlobal() (<-chan GlobalUpdate, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	sub := &globalSubscriber{ch: make(chan GlobalUpdate, feedBuffer)}
	r.globalSubs[id] = sub

	dispose := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.globalSubs[id]; ok {
			delete(r.globalSubs, id)
			close(sub.ch)
		}
	}
	return sub.ch, dispose
}

// broadcastRecordLocked delivers rec to every list subscriber without
// blocking. Caller must hold r.mu: dispose closes subscriber channels under
// the same lock, so sending under it is what makes the send safe.
func (r *Registry) broadcastRecordLocked(rec Record) {
	for _, sub := range r.listSubs {
		select {
		case sub.ch <- rec:
		default:
			metrics.RecordFeedDropped("list")
		}
	}
}

// broadcastGlobalLocked delivers update to every global subscriber without
// blocking. Caller must hold r.mu.
func (r *Registry) broadcastGlobalLocked(update GlobalUpdate) {
	for _, sub := range r.globalSubs {
		select {
		case sub.ch <- update:
		default:
			metrics.RecordFeedDropped("global")
		}
	}
}

// SubscriberCount returns how many feeds are currently attached. Used by the
// admin surface for leak diagnostics.
func (r *Registry) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listSubs) + len(r.globalSubs)
}
