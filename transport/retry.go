// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-a2a/chatkit"
)

// RetryConfig controls retry behavior for blocking requests. Streaming
// requests are never retried; a broken stream is resumed by
// resubscribing.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero disables retry.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier is the backoff growth factor per attempt.
	Multiplier float64
}

// DefaultRetryConfig returns a conservative retry policy: three attempts
// with exponential backoff starting at 500ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// retryable reports whether an error is worth retrying: network-level
// failures and retryable HTTP statuses. Structured JSON-RPC errors are
// definitive answers from the server and are never retried.
func retryable(err error) bool {
	var te *chatkit.TransportError
	if errors.As(err, &te) {
		if te.StatusCode == 0 {
			return true // network-level failure
		}
		return te.StatusCode >= 500 || te.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// withRetry executes fn with exponential backoff per config. A nil config
// or MaxAttempts <= 1 runs fn exactly once.
func withRetry(ctx context.Context, config *RetryConfig, operation string, fn func(context.Context) error) error {
	if config == nil || config.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		// 10% jitter keeps clients from retrying in lockstep.
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)

		select {
		case <-time.After(delay + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, config.MaxAttempts, lastErr)
}

// PostRPCWithRetry is PostRPC wrapped in the retry policy. Only transport
// failures are retried; streaming requests pass through unretried.
func (t *Transport) PostRPCWithRetry(ctx context.Context, req *chatkit.Request, acceptStream bool, config *RetryConfig) (*Result, error) {
	if acceptStream {
		return t.PostRPC(ctx, req, true)
	}

	var result *Result
	err := withRetry(ctx, config, req.Method, func(ctx context.Context) error {
		var err error
		result, err = t.PostRPC(ctx, req, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
