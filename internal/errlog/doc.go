// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package errlog provides centralized failure classification and the shared
// error registry for the console core.
//
// The Classifier maps every request outcome (transport failure, HTTP error,
// or a transport-successful response carrying an application-level failure
// code) to a typed Record. Classification is a pure mapping; the request
// pipeline decides what to do with the result (registry insertion, session
// invalidation, rethrow to the caller).
//
// The Registry is the process-wide, bounded error log. It exposes two
// independent live feeds: the ordered record list (capped, oldest evicted
// first) and the single current global error slot consumed by whichever
// screen is active. Screens hold transient references only; all mutation
// goes through Report, Acknowledge, and ClearAll.
package errlog
