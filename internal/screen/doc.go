// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package screen defines the lifecycle contract every console screen
// implements and the Binder that wires it to the error registry.
//
// Screens do not inherit shared behavior; they implement the Screen
// capability interface and a Binder composes the cross-cutting pieces:
// clearing stale global errors on activation, subscribing to the global
// error feed, and guaranteeing that every subscription taken during a
// screen's active phase is disposed at deactivation. A subscription that
// outlives its screen keeps dispatching into a view nobody renders; the
// Binder treats that as a correctness bug and owns disposal itself.
package screen
