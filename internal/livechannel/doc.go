// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package livechannel maintains one reconnecting server-push transport per
// named channel and fans incoming envelopes out to any number of
// subscribers.
//
// The transport is shared: the first Subscribe for a channel dials it, later
// subscribers reuse it, and the connection closes only when the last
// subscriber disposes. Transport failures are retried internally with capped
// exponential backoff; subscribers see a gap in delivery, never an error, and
// do not re-subscribe. Envelopes are opaque {event, payload} pairs; decoding
// the payload is the subscriber's business.
package livechannel
