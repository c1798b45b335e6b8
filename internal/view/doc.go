// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package view merges paginated snapshots with live delta streams into
// consistent per-screen working sets.
//
// Each screen owns one MergeBuffer holding two projections of the same
// events: an unbounded map-point set sorted ascending by timestamp, and a
// table window bounded to the page size, newest first. Deltas are filtered
// against the active time range, de-duplicated by event id, and surfaced to
// the operator through a throttled toast notifier and a running counter.
package view
