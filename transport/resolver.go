// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/chatkit"
)

// CardResolver fetches agent cards from an agent's well-known path.
type CardResolver struct {
	hc           *http.Client
	interceptors []Interceptor
}

// NewCardResolver creates a CardResolver using the given HTTP client.
// A nil client falls back to http.DefaultClient.
func NewCardResolver(hc *http.Client, interceptors ...Interceptor) *CardResolver {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &CardResolver{hc: hc, interceptors: interceptors}
}

// Resolve fetches the agent card from baseURL's well-known path. Any
// failure, a non-2xx status, a malformed body or a card without an
// endpoint URL is a [chatkit.DiscoveryError].
func (r *CardResolver) Resolve(ctx context.Context, baseURL string) (*chatkit.AgentCard, error) {
	targetURL := strings.TrimRight(baseURL, "/") + chatkit.AgentCardWellKnownPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, &chatkit.DiscoveryError{URL: targetURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	invoker := ChainInterceptors(r.interceptors, func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return r.hc.Do(req.WithContext(ctx))
	})

	resp, err := invoker(ctx, req)
	if err != nil {
		return nil, &chatkit.DiscoveryError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &chatkit.DiscoveryError{
			URL: targetURL,
			Err: fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var card chatkit.AgentCard
	if err := json.UnmarshalRead(resp.Body, &card); err != nil {
		return nil, &chatkit.DiscoveryError{URL: targetURL, Err: err}
	}
	if err := card.Validate(); err != nil {
		return nil, &chatkit.DiscoveryError{URL: targetURL, Err: err}
	}

	return &card, nil
}

// ResolveStatic validates a literally supplied card so callers that
// already hold a card share the resolver's failure mode.
func ResolveStatic(card *chatkit.AgentCard) (*chatkit.AgentCard, error) {
	if err := card.Validate(); err != nil {
		return nil, &chatkit.DiscoveryError{URL: "", Err: err}
	}
	return card, nil
}
