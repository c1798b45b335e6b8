// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

// State is the process-wide session lifecycle position.
type State int

const (
	// StateActive is the initial state: the session credential is presumed
	// valid and requests flow normally.
	StateActive State = iota

	// StateInvalidationPending means an invalidation signal was received and
	// the countdown toward forced logout is running.
	StateInvalidationPending

	// StateLoggedOut is terminal. Credentials are wiped and the operator has
	// been handed to the sign-out collaborator.
	StateLoggedOut
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInvalidationPending:
		return "invalidation_pending"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Trigger identifies what started an invalidation flow.
type Trigger string

const (
	// TriggerHard is a transport-level 401.
	TriggerHard Trigger = "hard"

	// TriggerSoft is the application-level invalidation code inside a
	// transport-successful response.
	TriggerSoft Trigger = "soft"

	// TriggerExpiry is a proactive trigger from the credential expiry watch.
	TriggerExpiry Trigger = "expiry"
)
