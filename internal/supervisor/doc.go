// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package supervisor builds the daemon's suture supervision tree.
//
// The tree has three layers for failure isolation: session (expiry watch),
// streaming (live channel manager), and admin (operational HTTP surface).
// A crash in the streaming layer restarts the live transport without
// touching the admin surface or the session machinery.
package supervisor
