// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retrying HTTP transport used for remote
// model calls.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/kbindex/pkg/types"
)

// RetryBaseDelay is the backoff base used when a RetryPolicy leaves
// BaseDelay unset.
var RetryBaseDelay = time.Second

// sleep waits for d or until ctx is done. Tests replace it to record delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// maxErrorBody caps how much of a failed response body is kept in a StatusError.
const maxErrorBody = 2048

// ErrRetriesExhausted is returned when every attempt failed without a
// recorded transient error. It is not expected in practice.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds how DoWithRetry retries a request.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseDelay is the sleep before the first retry; it doubles each time.
	BaseDelay time.Duration

	// AttemptTimeout bounds each attempt. Zero means no per-attempt limit.
	AttemptTimeout time.Duration

	// Limiter, when set, is waited on before every attempt.
	Limiter *rate.Limiter

	// ExpectStatus, when non-zero, is the only status treated as success.
	// Any other 2xx fails at once with a *StatusError.
	ExpectStatus int
}

// StatusError is an HTTP response whose status was not accepted. It unwraps
// to types.ErrTransient for 429 and 5xx responses and to
// types.ErrFatalRemote otherwise.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if IsTransientStatus(e.StatusCode) {
		return types.ErrTransient
	}
	return types.ErrFatalRemote
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Backoff returns the delay that follows failed attempt n, counted from 0:
// base * 2^n.
func Backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * base
}

// DoWithRetry sends req and returns the body of the first 2xx response, or
// of the first policy.ExpectStatus response when that is set.
//
// HTTP 429, 5xx and network failures (including an attempt timing out) are
// transient and retried up to policy.MaxRetries more times, sleeping
// Backoff(base, attempt) before each retry and never after the last
// attempt. Any other status fails at once with a *StatusError. When the
// parent context is cancelled the loop stops and ctx.Err() is returned.
//
// The request body is replayed through req.GetBody, which
// http.NewRequest sets for in-memory bodies.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) ([]byte, error) {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = RetryBaseDelay
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(base, attempt-1)); err != nil {
				return nil, err
			}
		}
		if policy.Limiter != nil {
			if err := policy.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		body, err := doOnce(ctx, client, req, policy)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, types.ErrTransient) {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, ErrRetriesExhausted
	}
	return nil, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

func doOnce(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) ([]byte, error) {
	if policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		defer cancel()
	}

	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", types.ErrTransient, err)
	}

	if !accepted(resp.StatusCode, policy.ExpectStatus) {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func accepted(code, expect int) bool {
	if expect != 0 {
		return code == expect
	}
	return code >= 200 && code <= 299
}
