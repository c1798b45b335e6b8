// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package session owns the process-wide session state machine and the forced
// logout flow.
//
// The lifecycle is Active -> InvalidationPending(deadline) -> LoggedOut.
// Only the Controller drives transitions; screens and the request pipeline
// trigger it but never mutate state directly. LoggedOut is terminal: the
// operator gets a fresh session only through a process restart.
//
// The package also provides the local credential cache (in-memory or
// BadgerDB-backed with AES-GCM encryption at rest) that the request pipeline
// reads and the teardown sequence wipes.
package session
