// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements a typed A2A protocol client: agent discovery,
// blocking and streaming message operations, task management, and
// push-notification configuration, all gated on the capabilities the
// agent's card advertises.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/auth"
	"github.com/go-a2a/chatkit/transport"
)

// AuthChallenge is an out-of-band authentication demand raised by the
// agent mid-task. It carries the parts of the status message describing
// what the agent needs.
type AuthChallenge struct {
	TaskID     string
	ContextID  string
	Challenges chatkit.PartList
}

// Client is a typed A2A protocol client bound to one agent. It is safe
// for concurrent use by multiple goroutines.
type Client struct {
	opts      *options
	transport *transport.Transport
	resolver  *transport.CardResolver

	// nextID is never reset; request ids are strictly increasing for the
	// lifetime of the client.
	nextID atomic.Int64

	mu   sync.Mutex
	card *chatkit.AgentCard

	// authMu orders challenge publishes against Close so a stream pump
	// never sends on the closed channel.
	authMu sync.Mutex
	authCh chan AuthChallenge
	closed atomic.Bool
}

// New creates a Client. Either WithBaseURL or WithAgentCard must be
// given; with both, the supplied card wins and discovery is skipped.
func New(opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.baseURL == "" && o.card == nil {
		return nil, errors.New("either a base URL or an agent card is required")
	}

	interceptors := o.interceptors
	if o.tokenProvider != nil {
		interceptors = append([]transport.Interceptor{tokenInterceptor(o.tokenProvider)}, interceptors...)
	}

	c := &Client{
		opts:     o,
		resolver: transport.NewCardResolver(o.hc, interceptors...),
		card:     o.card,
		authCh:   make(chan AuthChallenge, 8),
	}

	endpoint := o.baseURL
	if o.card != nil && o.card.URL != "" {
		endpoint = o.card.URL
	}
	c.transport = transport.New(endpoint,
		transport.WithHTTPClient(o.hc),
		transport.WithInterceptors(interceptors...),
		transport.WithUserAgent(o.userAgent),
		transport.WithLogger(o.logger),
	)

	return c, nil
}

// tokenInterceptor fetches a bearer token per request.
func tokenInterceptor(provider auth.TokenProvider) transport.Interceptor {
	return func(ctx context.Context, req *http.Request, next transport.Invoker) (*http.Response, error) {
		token, err := provider.Token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return next(ctx, req)
	}
}

// Descriptor returns the agent card, resolving it from the well-known
// path on first use and memoizing it for the client's lifetime.
func (c *Client) Descriptor(ctx context.Context) (*chatkit.AgentCard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.card != nil {
		return c.card, nil
	}

	card, err := c.resolver.Resolve(ctx, c.opts.baseURL)
	if err != nil {
		return nil, err
	}
	c.card = card

	// The card names the RPC endpoint authoritatively; rebind the
	// transport if discovery pointed somewhere else.
	if card.URL != "" && card.URL != c.opts.baseURL {
		c.rebindTransport(card.URL)
	}
	return card, nil
}

func (c *Client) rebindTransport(endpoint string) {
	interceptors := c.opts.interceptors
	if c.opts.tokenProvider != nil {
		interceptors = append([]transport.Interceptor{tokenInterceptor(c.opts.tokenProvider)}, interceptors...)
	}
	c.transport = transport.New(endpoint,
		transport.WithHTTPClient(c.opts.hc),
		transport.WithInterceptors(interceptors...),
		transport.WithUserAgent(c.opts.userAgent),
		transport.WithLogger(c.opts.logger),
	)
}

// currentTransport returns the transport bound to the card's endpoint,
// guarded against the one-time rebind after discovery.
func (c *Client) currentTransport() *transport.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// SupportsStreaming reports whether the agent's card advertises the
// streaming capability.
func (c *Client) SupportsStreaming(ctx context.Context) (bool, error) {
	card, err := c.Descriptor(ctx)
	if err != nil {
		return false, err
	}
	return card.Capabilities.Streaming, nil
}

// nextRequestID returns the next strictly-increasing request id.
func (c *Client) nextRequestID() int64 {
	return c.nextID.Add(1)
}

// callBlocking issues a blocking JSON-RPC call and returns the raw result
// payload. A structured server error is returned as a *chatkit.RPCError
// error value.
func (c *Client) callBlocking(ctx context.Context, method string, params any) ([]byte, error) {
	if c.closed.Load() {
		return nil, errors.New("client is closed")
	}

	// Every call resolves the descriptor first; it names the RPC
	// endpoint authoritatively.
	if _, err := c.Descriptor(ctx); err != nil {
		return nil, err
	}

	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	req := chatkit.NewRequest(c.nextRequestID(), method, params)
	result, err := c.currentTransport().PostRPCWithRetry(ctx, req, false, c.opts.retryConfig)
	if err != nil {
		return nil, err
	}
	if result.Response.Error != nil {
		return nil, result.Response.Error
	}
	return result.Response.Result, nil
}

// callStreaming issues a streaming JSON-RPC call and returns a Stream
// delivering decoded events. Streaming calls are never retried.
func (c *Client) callStreaming(ctx context.Context, method string, params any) (*Stream, error) {
	if c.closed.Load() {
		return nil, errors.New("client is closed")
	}

	if _, err := c.Descriptor(ctx); err != nil {
		return nil, err
	}

	req := chatkit.NewRequest(c.nextRequestID(), method, params)
	result, err := c.currentTransport().PostRPC(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if result.Response != nil {
		// The server declined to stream. A structured error is
		// surfaced; a single blocking result is delivered as a
		// one-event stream so callers keep one code path.
		if result.Response.Error != nil {
			return nil, result.Response.Error
		}
		event, err := result.Response.Event()
		if err != nil {
			return nil, err
		}
		return newSingleEventStream(c, event), nil
	}
	return newStream(ctx, c, result.Stream), nil
}

// SendMessage sends a message with message/send and blocks until the
// server responds. The result is a Message or a Task event.
func (c *Client) SendMessage(ctx context.Context, params *chatkit.MessageSendParams) (chatkit.Event, error) {
	if params == nil || params.Message == nil {
		return nil, errors.New("message is required")
	}
	if err := params.Message.Validate(); err != nil {
		return nil, err
	}

	raw, err := c.callBlocking(ctx, chatkit.MethodMessageSend, params)
	if err != nil {
		return nil, err
	}
	event, err := chatkit.UnmarshalEvent(raw)
	if err != nil {
		return nil, err
	}
	c.warnUnknownState(event)
	return event, nil
}

// warnUnknownState logs the original wire spelling of a task state the
// decoder did not recognize and mapped to pending.
func (c *Client) warnUnknownState(event chatkit.Event) {
	if raw, ok := chatkit.UnknownTaskState(event); ok {
		c.opts.logger.Warn("unrecognized task state mapped to pending",
			"state", raw)
	}
}

// SendMessageStream sends a message with message/stream and returns the
// event stream. It fails with [chatkit.UnsupportedOperationError] before
// any network call when the agent does not advertise streaming.
func (c *Client) SendMessageStream(ctx context.Context, params *chatkit.MessageSendParams) (*Stream, error) {
	if params == nil || params.Message == nil {
		return nil, errors.New("message is required")
	}
	if err := params.Message.Validate(); err != nil {
		return nil, err
	}
	if err := c.requireStreaming(ctx); err != nil {
		return nil, err
	}
	return c.callStreaming(ctx, chatkit.MethodMessageStream, params)
}

// ResubscribeTask reattaches to a live task's event stream after a
// disconnect. It is gated on the streaming capability like
// SendMessageStream.
func (c *Client) ResubscribeTask(ctx context.Context, taskID string) (*Stream, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	if err := c.requireStreaming(ctx); err != nil {
		return nil, err
	}
	return c.callStreaming(ctx, chatkit.MethodTasksResubscribe, &chatkit.TaskIDParams{ID: taskID})
}

func (c *Client) requireStreaming(ctx context.Context) error {
	ok, err := c.SupportsStreaming(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &chatkit.UnsupportedOperationError{Operation: "streaming"}
	}
	return nil
}

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, params *chatkit.TaskQueryParams) (*chatkit.Task, error) {
	if params == nil || params.ID == "" {
		return nil, errors.New("task id is required")
	}

	raw, err := c.callBlocking(ctx, chatkit.MethodTasksGet, params)
	if err != nil {
		return nil, err
	}
	var task chatkit.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, &chatkit.ParseError{Payload: string(raw), Err: err}
	}
	c.warnUnknownState(&task)
	return &task, nil
}

// CancelTask requests cancellation of a live task and returns its
// resulting state.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*chatkit.Task, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}

	raw, err := c.callBlocking(ctx, chatkit.MethodTasksCancel, &chatkit.TaskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}
	var task chatkit.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, &chatkit.ParseError{Payload: string(raw), Err: err}
	}
	c.warnUnknownState(&task)
	return &task, nil
}

// SetPushNotificationConfig registers a push notification endpoint for a
// task. It fails with [chatkit.UnsupportedOperationError] before any
// network call when the agent does not advertise push notifications.
func (c *Client) SetPushNotificationConfig(ctx context.Context, config *chatkit.TaskPushNotificationConfig) (*chatkit.TaskPushNotificationConfig, error) {
	if config == nil || config.TaskID == "" {
		return nil, errors.New("task id is required")
	}
	if err := c.requirePushNotifications(ctx); err != nil {
		return nil, err
	}

	raw, err := c.callBlocking(ctx, chatkit.MethodPushConfigSet, config)
	if err != nil {
		return nil, err
	}
	var out chatkit.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &chatkit.ParseError{Payload: string(raw), Err: err}
	}
	return &out, nil
}

// GetPushNotificationConfig fetches the push notification configuration
// for a task, gated like SetPushNotificationConfig.
func (c *Client) GetPushNotificationConfig(ctx context.Context, taskID string) (*chatkit.TaskPushNotificationConfig, error) {
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	if err := c.requirePushNotifications(ctx); err != nil {
		return nil, err
	}

	raw, err := c.callBlocking(ctx, chatkit.MethodPushConfigGet, &chatkit.TaskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}
	var out chatkit.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &chatkit.ParseError{Payload: string(raw), Err: err}
	}
	return &out, nil
}

func (c *Client) requirePushNotifications(ctx context.Context) error {
	card, err := c.Descriptor(ctx)
	if err != nil {
		return err
	}
	if !card.Capabilities.PushNotifications {
		return &chatkit.UnsupportedOperationError{Operation: "push notifications"}
	}
	return nil
}

// AuthRequired returns a channel delivering authentication challenges
// observed on any of the client's streams. It is the surface for callers
// outside the event flow, e.g. a UI prompting for credentials across
// sessions sharing this client; consumers that already fold the event
// stream see the same state on the status updates themselves. The
// channel is closed by Close.
func (c *Client) AuthRequired() <-chan AuthChallenge {
	return c.authCh
}

// publishAuthChallenge delivers a challenge without ever blocking the
// stream pump; a full channel drops the challenge with a warning since
// the same state is visible via the status-update event itself. The
// mutex orders the publish against Close, which may run concurrently
// while streams are still live.
func (c *Client) publishAuthChallenge(challenge AuthChallenge) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.closed.Load() {
		return
	}
	select {
	case c.authCh <- challenge:
	default:
		c.opts.logger.Warn("auth challenge channel full, dropping challenge",
			"task_id", challenge.TaskID)
	}
}

// isAuthRequired reports whether a status update signals the
// auth-required state.
func isAuthRequired(status chatkit.TaskStatus) bool {
	return status.State == chatkit.TaskStateAuthRequired
}

// Close releases the client. Open streams keep running until their own
// Close; new calls fail.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		// Taking the lock after flipping closed waits out any publish in
		// flight; later publishers observe closed and return early.
		c.authMu.Lock()
		close(c.authCh)
		c.authMu.Unlock()
	}
	return nil
}
