// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package apiclient is the request pipeline wrapping every outbound call to
// the surveillance backend.
//
// Pre-send it attaches the session credential header when one is stored;
// absence is not an error, the request goes out unauthenticated. Post-receive
// it classifies the outcome, inspecting the body even on HTTP 200 because
// the backend signals session invalidation inside successful responses.
// Failures are delivered twice on purpose: once to the shared error registry
// for cross-cutting visibility, once to the caller as a typed error so local
// retry logic can run independently. Neither path is ever skipped because
// the other exists.
package apiclient
