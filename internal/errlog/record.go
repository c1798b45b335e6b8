// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package errlog

import (
	"fmt"
	"time"
)

// Kind categorizes a classified failure.
type Kind string

const (
	// KindNetwork indicates no transport-level response was received.
	KindNetwork Kind = "network"

	// KindServer indicates a 5xx response.
	KindServer Kind = "server"

	// KindClient indicates a 4xx response, including the 401-equivalent
	// soft invalidation signal.
	KindClient Kind = "client"

	// KindTimeout indicates a request timeout (HTTP 408 or client deadline).
	KindTimeout Kind = "timeout"

	// KindUnknown indicates a response that matched no other rule.
	KindUnknown Kind = "unknown"
)

// Invalidation marks how a record affects the session, if at all.
type Invalidation string

const (
	// InvalidationNone means the record has no session impact.
	InvalidationNone Invalidation = ""

	// InvalidationHard means a transport-level 401 was received.
	InvalidationHard Invalidation = "hard"

	// InvalidationSoft means a transport-successful response carried the
	// application-level invalidation code.
	InvalidationSoft Invalidation = "soft"
)

// Record is a classified failure. Records are owned by the Registry once
// reported; consumers must treat them as read-only and flip Acknowledged
// only through Registry.Acknowledge.
type Record struct {
	ID           string       `json:"id"`
	Message      string       `json:"message"`
	Kind         Kind         `json:"kind"`
	StatusCode   int          `json:"status_code"`
	Timestamp    time.Time    `json:"timestamp"`
	SourceURL    string       `json:"source_url,omitempty"`
	SourceMethod string       `json:"source_method,omitempty"`
	Displayable  bool         `json:"displayable"`
	Acknowledged bool         `json:"acknowledged"`
	Invalidation Invalidation `json:"-"`
}

// Invalidating reports whether the record must be routed to the session
// invalidation controller.
func (r Record) Invalidating() bool {
	return r.Invalidation != InvalidationNone
}

// APIError wraps a classified record as an error so the request pipeline can
// return it to the caller while the registry keeps the shared copy. Global
// visibility and local handling are independent paths; both always run.
type APIError struct {
	Record Record
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Record.StatusCode > 0 {
		return fmt.Sprintf("%s %s: %s (status %d)",
			e.Record.SourceMethod, e.Record.SourceURL, e.Record.Message, e.Record.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Record.SourceMethod, e.Record.SourceURL, e.Record.Message)
}

// Kind returns the record's failure category.
func (e *APIError) Kind() Kind {
	return e.Record.Kind
}
