// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package metrics provides Prometheus instrumentation for the console core.
//
// Collectors are registered with promauto against the default registry and
// exposed on the admin surface's /metrics endpoint. Record* helpers exist so
// call sites stay free of label plumbing.
package metrics
