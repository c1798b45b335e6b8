// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/metrics"
)

// DefaultCountdown is the grace period between an invalidation signal and
// forced teardown. The operator can only accelerate it, never stop it.
const DefaultCountdown = 10 * time.Second

// teardownTimeout bounds each external teardown step so a hung logout
// collaborator cannot leave the flow stuck in InvalidationPending.
const teardownTimeout = 15 * time.Second

// LogoutFunc is the external collaborator performing the authoritative
// sign-out (e.g. an identity-provider redirect). The controller calls it but
// does not implement it.
type LogoutFunc func(ctx context.Context) error

// Prompter presents the blocking forced-logout surface with its countdown.
// PresentCountdown must return when the operator confirms or the deadline
// passes; returning early accelerates teardown, it cannot prevent it.
type Prompter interface {
	PresentCountdown(ctx context.Context, deadline time.Time)
}

// Navigator is the in-app fallback used when the logout collaborator fails:
// it moves the operator to the local login route.
type Navigator interface {
	NavigateLogin() error
}

// Reloader is the last-resort fallback: a full process reload.
type Reloader interface {
	Reload() error
}

// Controller is the session invalidation state machine. A single instance
// exists per process; the request pipeline and the expiry watch trigger it.
type Controller struct {
	mu       sync.Mutex
	state    State
	deadline time.Time

	credentials CredentialStore
	logout      LogoutFunc
	navigator   Navigator
	reloader    Reloader
	prompter    Prompter
	countdown   time.Duration

	// done is closed once LoggedOut is reached.
	done chan struct{}
}

// errMissingCollaborator marks a teardown tier whose collaborator was never
// wired; the tier is skipped and the next fallback runs.
var errMissingCollaborator = errors.New("collaborator not configured")

// ControllerConfig wires the controller's collaborators. Credentials is
// required; Logout, Navigator, Reloader and Prompter may each be nil, in
// which case that tier is treated as failed and the next fallback runs.
type ControllerConfig struct {
	Credentials CredentialStore
	Logout      LogoutFunc
	Navigator   Navigator
	Reloader    Reloader
	Prompter    Prompter

	// Countdown overrides DefaultCountdown when positive.
	Countdown time.Duration
}

// NewController creates a controller in StateActive.
func NewController(cfg ControllerConfig) *Controller {
	countdown := cfg.Countdown
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	metrics.SetSessionState(float64(StateActive))
	return &Controller{
		state:       StateActive,
		credentials: cfg.Credentials,
		logout:      cfg.Logout,
		navigator:   cfg.Navigator,
		reloader:    cfg.Reloader,
		prompter:    cfg.Prompter,
		countdown:   countdown,
		done:        make(chan struct{}),
	}
}

// State returns the current lifecycle position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Deadline returns the countdown deadline while InvalidationPending.
func (c *Controller) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.state == StateInvalidationPending
}

// Done is closed once the controller reaches LoggedOut.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Trigger enters the invalidation flow. Only the Active state accepts a
// trigger; while InvalidationPending a second trigger is a no-op and does
// not reset or extend the countdown.
func (c *Controller) Trigger(reason Trigger) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		logging.Debug().
			Str("reason", string(reason)).
			Str("state", c.state.String()).
			Msg("invalidation trigger ignored")
		return
	}
	c.state = StateInvalidationPending
	c.deadline = time.Now().Add(c.countdown)
	deadline := c.deadline
	c.mu.Unlock()

	metrics.SetSessionState(float64(StateInvalidationPending))
	metrics.RecordSessionInvalidation(string(reason))
	logging.Warn().
		Str("reason", string(reason)).
		Time("deadline", deadline).
		Msg("session invalidated, forced logout pending")

	go c.run(deadline)
}

// run waits out the countdown (or the operator's confirmation) and then
// performs teardown. It always terminates in StateLoggedOut.
func (c *Controller) run(deadline time.Time) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	if c.prompter != nil {
		// Blocks until confirmation or deadline. Either way we proceed.
		c.prompter.PresentCountdown(ctx, deadline)
	} else {
		<-ctx.Done()
	}
	cancel()

	c.teardown()
}

// teardown executes the credential wipe and the three-tier sign-out
// sequence. Every step runs even when a previous one failed; the flow never
// leaves the operator stuck short of LoggedOut.
func (c *Controller) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	// Step 1: wipe local session artifacts.
	if err := c.credentials.Wipe(ctx); err != nil {
		metrics.RecordTeardownStep("wipe", false)
		logging.Error().Err(err).Msg("credential wipe failed, continuing teardown")
	} else {
		metrics.RecordTeardownStep("wipe", true)
	}

	// Step 2: authoritative sign-out. A missing collaborator counts as a
	// failed tier so the fallbacks still run.
	err := errMissingCollaborator
	if c.logout != nil {
		err = c.logout(ctx)
	}
	metrics.RecordTeardownStep("logout", err == nil)
	if err != nil {
		logging.Error().Err(err).Msg("logout collaborator failed, falling back to local navigation")

		// Step 3: in-app navigation to the login route.
		navErr := errMissingCollaborator
		if c.navigator != nil {
			navErr = c.navigator.NavigateLogin()
		}
		metrics.RecordTeardownStep("navigate", navErr == nil)
		if navErr != nil {
			logging.Error().Err(navErr).Msg("login navigation failed, forcing reload")

			// Step 4: full reload, last resort.
			reloadErr := errMissingCollaborator
			if c.reloader != nil {
				reloadErr = c.reloader.Reload()
			}
			metrics.RecordTeardownStep("reload", reloadErr == nil)
			if reloadErr != nil {
				logging.Error().Err(reloadErr).Msg("reload failed; operator intervention required")
			}
		}
	}

	c.mu.Lock()
	c.state = StateLoggedOut
	c.mu.Unlock()
	metrics.SetSessionState(float64(StateLoggedOut))
	logging.Info().Msg("session teardown complete")
	close(c.done)
}
