// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package history is a client for the agent's durable conversation
// history API: listing contexts, listing the tasks of a context, and
// renaming or archiving contexts. Sessions can hydrate their transcript
// from it instead of, or in addition to, local persistence.
//
// Deployed servers vary: enum values arrive lowercase or mixed-case, the
// context-update endpoint is spelled two ways, and task ordering is not
// guaranteed. The client normalizes all three.
package history

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/transport"
)

// Context is one durable conversation on the server.
type Context struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitzero"`
	Archived  bool      `json:"archived,omitzero"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// ContextPatch is a partial update to a context. Nil fields are left
// unchanged.
type ContextPatch struct {
	Name     *string `json:"name,omitzero"`
	Archived *bool   `json:"archived,omitzero"`
}

// Client talks to the history API rooted at a base URL.
type Client struct {
	baseURL      string
	hc           *http.Client
	interceptors []transport.Interceptor
	logger       *slog.Logger
}

// Option configures a history Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithInterceptors appends HTTP interceptors.
func WithInterceptors(interceptors ...transport.Interceptor) Option {
	return func(c *Client) { c.interceptors = append(c.interceptors, interceptors...) }
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a history Client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &chatkit.TransportError{Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	invoker := transport.ChainInterceptors(c.interceptors, func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return c.hc.Do(req.WithContext(ctx))
	})

	resp, err := invoker(ctx, req)
	if err != nil {
		return nil, &chatkit.TransportError{Err: err}
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &chatkit.TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return &chatkit.ParseError{Err: err}
	}
	return nil
}

// ListContexts returns all conversation contexts.
func (c *Client) ListContexts(ctx context.Context) ([]*Context, error) {
	resp, err := c.do(ctx, http.MethodGet, "/contexts", nil)
	if err != nil {
		return nil, err
	}
	var contexts []*Context
	if err := decodeResponse(resp, &contexts); err != nil {
		return nil, err
	}
	return contexts, nil
}

// ListTasks returns the tasks of one context, oldest first. Servers do
// not guarantee ordering, so tasks are sorted client-side by their
// status timestamp; task states are normalized by the Task decoder
// regardless of the casing the server used.
func (c *Client) ListTasks(ctx context.Context, contextID string) ([]*chatkit.Task, error) {
	if contextID == "" {
		return nil, fmt.Errorf("context id is required")
	}

	resp, err := c.do(ctx, http.MethodGet, "/contexts/"+contextID+"/tasks", nil)
	if err != nil {
		return nil, err
	}
	var tasks []*chatkit.Task
	if err := decodeResponse(resp, &tasks); err != nil {
		return nil, err
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Status.Timestamp < tasks[j].Status.Timestamp
	})
	return tasks, nil
}

// UpdateContext renames or archives a context. Deployments disagree on
// the endpoint spelling; the plural form is tried first and the singular
// fallback is used when the server rejects the route.
func (c *Client) UpdateContext(ctx context.Context, contextID string, patch *ContextPatch) (*Context, error) {
	if contextID == "" {
		return nil, fmt.Errorf("context id is required")
	}
	if patch == nil {
		return nil, fmt.Errorf("patch is required")
	}

	resp, err := c.do(ctx, http.MethodPatch, "/contexts/"+contextID, patch)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.logger.Debug("context update endpoint rejected, retrying singular form",
			slog.Int("status", resp.StatusCode))

		resp, err = c.do(ctx, http.MethodPatch, "/context/"+contextID, patch)
		if err != nil {
			return nil, err
		}
	}

	var updated Context
	if err := decodeResponse(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
