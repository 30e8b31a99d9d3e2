// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the HTTP layer of the A2A protocol:
// agent card resolution, JSON-RPC requests over HTTP POST, and decoding
// of Server-Sent-Events streams into protocol events.
package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/chatkit"
)

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"
)

// Transport issues JSON-RPC requests against a single agent endpoint and
// negotiates between blocking JSON responses and SSE streams.
type Transport struct {
	endpoint     string
	hc           *http.Client
	interceptors []Interceptor
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(t *Transport) { t.hc = hc }
}

// WithInterceptors appends interceptors to the transport's chain.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(t *Transport) { t.interceptors = append(t.interceptors, interceptors...) }
}

// WithUserAgent sets the User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(t *Transport) { t.userAgent = ua }
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// New creates a Transport for the given RPC endpoint.
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint:  endpoint,
		hc:        http.DefaultClient,
		userAgent: "go-a2a/chatkit " + chatkit.Version,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result is the outcome of one PostRPC call. Exactly one of Response and
// Stream is populated: Stream when the server answered with an SSE body
// the caller asked for, Response otherwise. A structured JSON-RPC error
// from the server arrives as Response.Error, not as a Go error.
type Result struct {
	Response *chatkit.Response
	Stream   *EventStream
}

// PostRPC serializes req and POSTs it to the agent endpoint. When
// acceptStream is true the Accept header requests text/event-stream and a
// streaming answer is returned as an unconsumed EventStream; otherwise
// the JSON response envelope is parsed and returned.
//
// A non-2xx status whose body is a JSON-RPC error envelope is returned as
// a structured error response. Anything else non-2xx is a
// [chatkit.TransportError].
func (t *Transport) PostRPC(ctx context.Context, req *chatkit.Request, acceptStream bool) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("User-Agent", t.userAgent)
	if acceptStream {
		httpReq.Header.Set("Accept", contentTypeSSE)
		httpReq.Header.Set("Cache-Control", "no-cache")
	} else {
		httpReq.Header.Set("Accept", contentTypeJSON)
	}

	invoker := ChainInterceptors(t.interceptors, func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return t.hc.Do(req.WithContext(ctx))
	})

	resp, err := invoker(ctx, httpReq)
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		// Servers report protocol-level failures with non-2xx statuses
		// and a JSON-RPC error body; surface those as structured
		// responses rather than transport failures.
		if envelope, perr := chatkit.UnmarshalResponse(body); perr == nil && envelope.Error != nil {
			return &Result{Response: envelope}, nil
		}
		return nil, &chatkit.TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if acceptStream && isEventStream(resp.Header.Get("Content-Type")) {
		// Hand the body over unconsumed; the EventStream owns it now.
		return &Result{Stream: NewEventStream(resp.Body, req.ID, t.logger)}, nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}

	envelope, err := chatkit.UnmarshalResponse(body)
	if err != nil {
		return nil, err
	}
	if id, ok := envelope.IDInt64(); ok && id != req.ID {
		t.logger.Warn("response id does not match request id",
			slog.Int64("want", req.ID), slog.Int64("got", id))
	}
	return &Result{Response: envelope}, nil
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(contentType, contentTypeSSE)
	}
	return mediaType == contentTypeSSE
}
