// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package adminapi exposes the daemon's operational HTTP surface: health
// and readiness probes, Prometheus metrics, and read-only introspection of
// the error registry and session state. It is an operator-facing sidecar
// surface, not part of the console's data path.
package adminapi
