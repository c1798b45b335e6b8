// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package errlog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// maxSentinelScanSize limits how much of a response body is inspected for the
// application-level failure envelope. Bodies larger than this are extremely
// unlikely to be the small JSON status envelopes the backend emits.
const maxSentinelScanSize = 64 * 1024 // 64KB

// Outcome is the raw result of one HTTP exchange, successful or not.
// StatusCode 0 means no transport-level response was received.
type Outcome struct {
	StatusCode int
	Body       []byte
	Method     string
	URL        string
	Err        error
}

// bodyEnvelope is the backend's application-level status wrapper. A response
// can be HTTP 200 and still carry a failure code in this envelope.
type bodyEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// staticMessages maps client-error status codes to fallback messages used
// when the body carries no usable message.
var staticMessages = map[int]string{
	http.StatusBadRequest:      "invalid request",
	http.StatusUnauthorized:    "session is no longer valid",
	http.StatusForbidden:       "operation not permitted",
	http.StatusNotFound:        "resource not found",
	http.StatusConflict:        "resource conflict",
	http.StatusRequestTimeout:  "request timed out",
	http.StatusTooManyRequests: "too many requests",
}

// Classifier maps request outcomes to typed records. The mapping is
// deterministic and has no side effects; callers decide registry insertion
// and session routing.
type Classifier struct {
	sentinelCodes map[int]struct{}
}

// NewClassifier creates a classifier that treats the given application-level
// failure codes as soft session invalidation, regardless of transport status.
func NewClassifier(sentinelCodes []int) *Classifier {
	codes := make(map[int]struct{}, len(sentinelCodes))
	for _, c := range sentinelCodes {
		codes[c] = struct{}{}
	}
	return &Classifier{sentinelCodes: codes}
}

// Classify evaluates an outcome against the classification rules in
// precedence order:
//
//  1. body carries a soft-invalidation code (checked even on 2xx)
//  2. transport status 0 (no response)
//  3. HTTP 408
//  4. HTTP 5xx
//  5. HTTP 401 (hard invalidation)
//  6. remaining 4xx
//  7. anything else
func (c *Classifier) Classify(o Outcome) Record {
	rec := Record{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		StatusCode:   o.StatusCode,
		SourceURL:    o.URL,
		SourceMethod: o.Method,
		Displayable:  true,
	}

	// Stage 1: body-level check. Runs before any transport-level rule so a
	// 200 response carrying the invalidation code is still caught.
	if env, ok := c.decodeEnvelope(o.Body); ok {
		if _, invalidating := c.sentinelCodes[env.Code]; invalidating {
			rec.Kind = KindClient
			rec.StatusCode = http.StatusUnauthorized
			rec.Message = staticMessages[http.StatusUnauthorized]
			rec.Displayable = false
			rec.Invalidation = InvalidationSoft
			return rec
		}
	}

	// Stage 2: transport-level rules.
	switch {
	case o.StatusCode == 0:
		rec.Kind = KindNetwork
		rec.Message = "network unreachable"
		if o.Err != nil {
			rec.Message = o.Err.Error()
		}

	case o.StatusCode == http.StatusRequestTimeout:
		rec.Kind = KindTimeout
		rec.Message = staticMessages[http.StatusRequestTimeout]

	case o.StatusCode >= 500:
		rec.Kind = KindServer
		rec.Message = "server error"

	case o.StatusCode == http.StatusUnauthorized:
		rec.Kind = KindClient
		rec.Message = staticMessages[http.StatusUnauthorized]
		rec.Displayable = false
		rec.Invalidation = InvalidationHard

	case o.StatusCode >= 400:
		rec.Kind = KindClient
		rec.Message = c.clientMessage(o)

	default:
		rec.Kind = KindUnknown
		rec.Message = fmt.Sprintf("unexpected response (status %d)", o.StatusCode)
	}

	return rec
}

// decodeEnvelope attempts to parse the backend's status envelope from a body.
// Returns false for empty, oversized, or non-JSON bodies.
func (c *Classifier) decodeEnvelope(body []byte) (bodyEnvelope, bool) {
	if len(body) == 0 || len(body) > maxSentinelScanSize {
		return bodyEnvelope{}, false
	}
	var env bodyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return bodyEnvelope{}, false
	}
	return env, env.Code != 0
}

// clientMessage derives a 4xx message from the body envelope, falling back
// to the static table.
func (c *Classifier) clientMessage(o Outcome) string {
	if env, ok := c.decodeEnvelope(o.Body); ok && env.Message != "" {
		return env.Message
	}
	if msg, ok := staticMessages[o.StatusCode]; ok {
		return msg
	}
	return fmt.Sprintf("request failed (status %d)", o.StatusCode)
}
