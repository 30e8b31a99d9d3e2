// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/auth"
	"github.com/go-a2a/chatkit/transport"
)

// options holds the resolved client configuration.
type options struct {
	baseURL          string
	card             *chatkit.AgentCard
	hc               *http.Client
	timeout          time.Duration
	retryConfig      *transport.RetryConfig
	interceptors     []transport.Interceptor
	tokenProvider    auth.TokenProvider
	logger           *slog.Logger
	streamBufferSize int
	userAgent        string
}

// Option configures a Client. Options validate eagerly and return an
// error rather than deferring failure to the first call.
type Option func(*options) error

// WithBaseURL sets the agent's base URL. The agent card is resolved from
// its well-known path on first use.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		if baseURL == "" {
			return errors.New("base URL must not be empty")
		}
		o.baseURL = baseURL
		return nil
	}
}

// WithAgentCard supplies the agent card directly, skipping discovery.
func WithAgentCard(card *chatkit.AgentCard) Option {
	return func(o *options) error {
		if card == nil {
			return errors.New("agent card must not be nil")
		}
		if err := card.Validate(); err != nil {
			return err
		}
		o.card = card
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		o.hc = hc
		return nil
	}
}

// WithTimeout sets a per-request timeout for blocking calls. Streaming
// calls are bounded only by their context.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = timeout
		return nil
	}
}

// WithRetryConfig sets the retry policy for blocking calls.
func WithRetryConfig(config *transport.RetryConfig) Option {
	return func(o *options) error {
		o.retryConfig = config
		return nil
	}
}

// WithInterceptors appends HTTP interceptors to the client's chain.
func WithInterceptors(interceptors ...transport.Interceptor) Option {
	return func(o *options) error {
		o.interceptors = append(o.interceptors, interceptors...)
		return nil
	}
}

// WithTokenProvider attaches a bearer-token provider. The token is
// fetched per request and sent in the Authorization header.
func WithTokenProvider(provider auth.TokenProvider) Option {
	return func(o *options) error {
		if provider == nil {
			return errors.New("token provider must not be nil")
		}
		o.tokenProvider = provider
		return nil
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithStreamBufferSize sets the channel buffer used by streams.
func WithStreamBufferSize(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return errors.New("stream buffer size must not be negative")
		}
		o.streamBufferSize = n
		return nil
	}
}

// WithUserAgent overrides the User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(o *options) error {
		o.userAgent = ua
		return nil
	}
}

func defaultOptions() *options {
	return &options{
		hc:               http.DefaultClient,
		timeout:          60 * time.Second,
		logger:           slog.Default(),
		streamBufferSize: 16,
		userAgent:        "go-a2a/chatkit " + chatkit.Version,
	}
}
