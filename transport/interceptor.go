// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net/http"
)

// Invoker performs an HTTP request.
type Invoker func(ctx context.Context, req *http.Request) (*http.Response, error)

// Interceptor wraps an Invoker, observing or modifying the request and
// response. Interceptors run in registration order.
type Interceptor func(ctx context.Context, req *http.Request, next Invoker) (*http.Response, error)

// ChainInterceptors composes interceptors around an invoker, first
// interceptor outermost.
func ChainInterceptors(interceptors []Interceptor, invoker Invoker) Invoker {
	if len(interceptors) == 0 {
		return invoker
	}

	// Build the chain from right to left.
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := invoker
		invoker = func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return interceptor(ctx, req, next)
		}
	}

	return invoker
}

// HeaderInterceptor returns an interceptor that sets a fixed header on
// every outgoing request.
func HeaderInterceptor(key, value string) Interceptor {
	return func(ctx context.Context, req *http.Request, next Invoker) (*http.Response, error) {
		req.Header.Set(key, value)
		return next(ctx, req)
	}
}
