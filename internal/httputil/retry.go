// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the rate-limiting and retry layers shared by
// every outbound client.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RetryBaseDelay controls the step duration for linear backoff between
// attempts: one step before the second attempt, two before the third.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxAttempts = 3

// ErrExhausted is returned when the attempt budget was consumed without a
// single attempt completing. It should not occur in practice.
var ErrExhausted = errors.New("retry attempts exhausted")

// DoWithRetry executes an HTTP request up to maxAttempts times, retrying
// only transient transport failures (timeouts, dropped connections). Any
// HTTP response — whatever its status — is returned to the caller without
// retry, and non-transient errors abort immediately and surface as-is.
//
// When maxAttempts is 0 the default (3) is used. If the caller's context
// is cancelled, during a backoff wait or mid-request, the function stops
// retrying. After exhausting attempts the last transport error is returned.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxAttempts int) (*http.Response, error) {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * RetryBaseDelay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err == nil {
			return resp, nil
		}
		// A dead caller context means the failure is ours, not the
		// network's.
		if ctx.Err() != nil {
			return nil, err
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, ErrExhausted
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

// IsTransient reports whether err is a transport failure worth retrying:
// a timeout, or a connection that dropped mid-flight. Refused connections,
// DNS failures, and TLS errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
