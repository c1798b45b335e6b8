// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thanhnd-MKV/iva-console/internal/logging"
)

// ErrNoExpiry is returned when the credential carries no exp claim.
var ErrNoExpiry = errors.New("session: credential has no expiry claim")

// TokenExpiry extracts the exp claim from a JWT credential without verifying
// the signature. The console is not the token's audience; it only needs the
// expiry to schedule a proactive invalidation before the backend starts
// rejecting requests.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("session: parse credential: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("session: read expiry claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// expiryPollInterval is how often the watch re-reads the credential. Tokens
// can be replaced out of band (re-login in another tab), so the watch cannot
// cache the expiry forever.
const expiryPollInterval = 30 * time.Second

// expiryLead fires the invalidation slightly before the actual expiry so the
// countdown completes while the credential is still nominally valid.
const expiryLead = 5 * time.Second

// ExpiryWatch polls the credential store and triggers a proactive session
// invalidation shortly before the token expires. It implements
// suture.Service and restarts cleanly under supervision.
type ExpiryWatch struct {
	source     CredentialSource
	controller *Controller
	interval   time.Duration
}

// NewExpiryWatch builds a watch over source that invalidates via controller.
func NewExpiryWatch(source CredentialSource, controller *Controller) *ExpiryWatch {
	return &ExpiryWatch{
		source:     source,
		controller: controller,
		interval:   expiryPollInterval,
	}
}

// Serve implements suture.Service.
func (w *ExpiryWatch) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", w.interval).Msg("credential expiry watch started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *ExpiryWatch) check(ctx context.Context) {
	token, err := w.source.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCredential) {
			logging.Warn().Err(err).Msg("expiry watch failed to read credential")
		}
		return
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		// Opaque tokens carry no expiry; nothing to watch.
		if !errors.Is(err, ErrNoExpiry) {
			logging.Debug().Err(err).Msg("credential is not a parseable JWT")
		}
		return
	}
	if time.Until(exp) <= expiryLead {
		logging.Warn().Time("expiry", exp).Msg("credential about to expire")
		w.controller.Trigger(TriggerExpiry)
	}
}

func (w *ExpiryWatch) String() string { return "session.ExpiryWatch" }
