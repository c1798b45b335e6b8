// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/thanhnd-MKV/iva-console/internal/errlog"
	"github.com/thanhnd-MKV/iva-console/internal/logging"
	"github.com/thanhnd-MKV/iva-console/internal/metrics"
	"github.com/thanhnd-MKV/iva-console/internal/session"
)

const (
	// DefaultHeaderName carries the session credential on every
	// authenticated request.
	DefaultHeaderName = "X-Auth-Token"

	defaultTimeout = 30 * time.Second

	// 429 is retried below the classification layer as a transport
	// courtesy; every other status reaches the classifier untouched.
	maxRateLimitRetries = 3
	rateLimitBaseDelay  = time.Second

	// maxBodyPeek bounds how much of a response body the pipeline buffers
	// for classification before handing it back to the caller.
	maxBodyPeek = 1 << 20 // 1MB

	breakerConsecutiveFailures = 5
)

// Invalidator receives session invalidation signals discovered by the
// pipeline. Implemented by the session controller.
type Invalidator interface {
	Trigger(reason session.Trigger)
}

// Config wires a Client.
type Config struct {
	// BaseURL is the backend root, no trailing slash required.
	BaseURL string

	// HeaderName defaults to DefaultHeaderName.
	HeaderName string

	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration

	// HTTPClient overrides the default transport. Tests inject one here.
	HTTPClient *http.Client

	Credentials session.CredentialSource
	Classifier  *errlog.Classifier
	Registry    *errlog.Registry
	Invalidator Invalidator
}

// Client is the request pipeline. Safe for concurrent use.
type Client struct {
	baseURL     string
	headerName  string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	credentials session.CredentialSource
	classifier  *errlog.Classifier
	registry    *errlog.Registry
	invalidator Invalidator
}

// NewClient builds the pipeline around cfg. The circuit breaker guards the
// transport only: 5xx responses are classified, not counted as breaker
// failures.
func NewClient(cfg Config) *Client {
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:     "backend",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(from.String(), to.String())
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		headerName:  headerName,
		httpClient:  httpClient,
		breaker:     breaker,
		credentials: cfg.Credentials,
		classifier:  cfg.Classifier,
		registry:    cfg.Registry,
		invalidator: cfg.Invalidator,
	}
}

// Get issues a GET through the pipeline.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON payload through the pipeline.
func (c *Client) Post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, payload)
}

// Do sends one request through the full pipeline: credential attach, breaker
// guarded transport with 429 retry, then classification. On failure the
// returned error is an *errlog.APIError wrapping the same record the
// registry received.
func (c *Client) Do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	start := time.Now()

	resp, err := c.send(ctx, method, url, payload)
	if err != nil {
		metrics.RecordPipelineRequest(method, "network", time.Since(start))
		return nil, c.fail(errlog.Outcome{Method: method, URL: url, Err: err})
	}

	metrics.RecordPipelineRequest(method, statusClass(resp.StatusCode), time.Since(start))

	body, err := peekBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, c.fail(errlog.Outcome{Method: method, URL: url, Err: fmt.Errorf("read response body: %w", err)})
	}

	outcome := errlog.Outcome{
		StatusCode: resp.StatusCode,
		Body:       body,
		Method:     method,
		URL:        url,
	}
	rec := c.classifier.Classify(outcome)

	// Soft invalidation: the transport call succeeded, so the response is
	// passed through unchanged for per-screen logic, while the session
	// controller is told exactly once. Soft records are not displayable and
	// never enter the registry.
	if rec.Invalidation == errlog.InvalidationSoft {
		logging.Warn().
			Str("url", url).
			Msg("soft session invalidation signaled inside successful response")
		c.invalidator.Trigger(session.TriggerSoft)
		return resp, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return resp, nil
	}

	resp.Body.Close()
	c.registry.Report(rec)
	if rec.Invalidation == errlog.InvalidationHard {
		c.invalidator.Trigger(session.TriggerHard)
	}
	return nil, &errlog.APIError{Record: rec}
}

// fail routes a transport-level failure through classification and the dual
// delivery contract.
func (c *Client) fail(outcome errlog.Outcome) error {
	rec := c.classifier.Classify(outcome)
	c.registry.Report(rec)
	if rec.Invalidation == errlog.InvalidationHard {
		c.invalidator.Trigger(session.TriggerHard)
	}
	return &errlog.APIError{Record: rec}
}

// send performs the transport exchange, retrying 429 with backoff. Only
// transport errors count against the breaker.
func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		req, err := c.buildRequest(ctx, method, url, payload)
		if err != nil {
			return nil, err
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			return c.httpClient.Do(req)
		})
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRateLimitRetries {
			return resp, nil
		}

		delay := retryDelay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		logging.Warn().
			Str("url", url).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("rate limited, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// The loop always returns on its final attempt.
	return nil, errors.New("retry budget exhausted")
}

// buildRequest assembles the outbound request with the credential header.
// A missing credential means an unauthenticated request, not a failure.
func (c *Client) buildRequest(ctx context.Context, method, url string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.credentials.Token(ctx)
	switch {
	case err == nil && token != "":
		req.Header.Set(c.headerName, token)
		logging.Debug().
			Str("token", logging.RedactToken(token)).
			Str("header", c.headerName).
			Msg("credential attached")
	case errors.Is(err, session.ErrNoCredential):
		// Unauthenticated request, by contract.
	case err != nil:
		// A broken credential store must not block the request either.
		logging.Warn().Err(err).Msg("credential read failed, sending unauthenticated")
	}

	return req, nil
}

// peekBody buffers the response body for classification and hands the
// caller an equivalent, replayable body.
func peekBody(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyPeek))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// retryDelay honors Retry-After when present, else exponential backoff.
func retryDelay(resp *http.Response, attempt int) time.Duration {
	if after := resp.Header.Get("Retry-After"); after != "" {
		if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return rateLimitBaseDelay * time.Duration(1<<attempt)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "other"
	}
}
