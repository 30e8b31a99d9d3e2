// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/client"
)

// State is the session's connection state.
type State string

// Session states. Connected is sticky once a context id is captured;
// the only way back is a full Disconnect.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Session owns one conversation with one agent: the context id
// lifecycle, the reconciled transcript, write-through persistence, and
// authentication-challenge correlation.
//
// A Session is not safe for concurrent use by multiple goroutines; it is
// designed to be driven from a single caller loop. Use separate
// client/session pairs for independent conversations.
type Session struct {
	client *client.Client
	rec    *Reconciler

	store      Store
	sessionKey string

	state  State
	logger *slog.Logger

	acceptedOutputModes []string
	historyLength       int64
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStore enables write-through persistence of the transcript and
// context id, scoped by sessionKey.
func WithStore(store Store, sessionKey string) SessionOption {
	return func(s *Session) {
		s.store = store
		s.sessionKey = sessionKey
	}
}

// WithSessionLogger sets the session's logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithAcceptedOutputModes sets the media types requested from the agent.
func WithAcceptedOutputModes(modes ...string) SessionOption {
	return func(s *Session) { s.acceptedOutputModes = modes }
}

// WithHistoryLength limits how much history the server includes in task
// events.
func WithHistoryLength(n int64) SessionOption {
	return func(s *Session) { s.historyLength = n }
}

// NewSession creates a disconnected Session over the given client.
func NewSession(c *client.Client, opts ...SessionOption) *Session {
	s := &Session{
		client: c,
		rec:    NewReconciler(),
		state:  StateDisconnected,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's connection state.
func (s *Session) State() State { return s.state }

// ContextID returns the conversation context id, empty before the first
// successful exchange.
func (s *Session) ContextID() string { return s.rec.ContextID() }

// Messages returns the reconciled transcript in order.
func (s *Session) Messages() []*Message { return s.rec.Messages() }

// Connect resolves the agent and restores any persisted session state.
func (s *Session) Connect(ctx context.Context) error {
	s.state = StateConnecting

	if _, err := s.client.Descriptor(ctx); err != nil {
		s.state = StateDisconnected
		return err
	}

	if s.store != nil {
		if err := s.restore(ctx); err != nil {
			// A corrupt persisted session is dropped, not fatal.
			s.logger.Warn("failed to restore persisted session", "error", err)
		}
	}

	s.state = StateConnected
	return nil
}

// Send sends one user message and folds the resulting event sequence
// into the transcript, streaming when the agent supports it. It returns
// once the exchange completes; the store observes every intermediate
// fold through the write-through persistence hook.
func (s *Session) Send(ctx context.Context, text string) error {
	if s.state == StateDisconnected {
		return &chatkit.PreconditionError{Reason: "session is not connected"}
	}
	if text == "" {
		return errors.New("message text must not be empty")
	}

	params := s.buildSendParams(text)

	s.rec.AddUserMessage(text)
	if err := s.persist(ctx); err != nil {
		return err
	}

	streaming, err := s.client.SupportsStreaming(ctx)
	if err != nil {
		return err
	}

	if streaming {
		stream, err := s.client.SendMessageStream(ctx, params)
		if err != nil {
			return err
		}
		return s.consume(ctx, stream)
	}

	event, err := s.client.SendMessage(ctx, params)
	if err != nil {
		return err
	}
	return s.fold(ctx, event)
}

func (s *Session) buildSendParams(text string) *chatkit.MessageSendParams {
	msg := chatkit.NewUserTextMessage(uuid.NewString(), text)
	msg.ContextID = s.rec.ContextID()

	params := &chatkit.MessageSendParams{Message: msg}
	if len(s.acceptedOutputModes) > 0 || s.historyLength > 0 {
		params.Configuration = &chatkit.SendConfiguration{
			AcceptedOutputModes: s.acceptedOutputModes,
			HistoryLength:       s.historyLength,
		}
	}
	return params
}

// consume drains a stream, folding and persisting after every event.
// Stream errors propagate to the caller unswallowed.
func (s *Session) consume(ctx context.Context, stream *client.Stream) error {
	defer stream.Close()

	for event := range stream.Events() {
		if err := s.fold(ctx, event); err != nil {
			return err
		}
	}
	return stream.Err()
}

// fold applies one event and writes through to the store. Auth-required
// status updates additionally raise a pending challenge entry. The
// session reads the auth state off the events it already folds rather
// than consuming client.AuthRequired, which aggregates challenges across
// every session sharing the client and is left to external consumers.
func (s *Session) fold(ctx context.Context, event chatkit.Event) error {
	switch ev := event.(type) {
	case *chatkit.TaskStatusUpdateEvent:
		if ev.Status.State == chatkit.TaskStateAuthRequired {
			s.beginAuth(ev.TaskID, ev.Status)
		}
	case *chatkit.Task:
		if ev.Status.State == chatkit.TaskStateAuthRequired {
			s.beginAuth(ev.ID, ev.Status)
		}
	}

	s.rec.Apply(event)
	return s.persist(ctx)
}

func (s *Session) beginAuth(taskID string, status chatkit.TaskStatus) {
	var parts chatkit.PartList
	if status.Message != nil {
		parts = status.Message.Parts
	}
	s.rec.BeginAuth(taskID, parts)
}

// CompleteAuthentication signals that the pending challenge was
// satisfied out of band and resumes the original task's event stream,
// which may emit further messages and artifacts. It fails with
// [chatkit.PreconditionError] when no context id or no pending challenge
// is known, e.g. the challenge expired or the session was cleared
// mid-flow.
func (s *Session) CompleteAuthentication(ctx context.Context) error {
	if s.rec.ContextID() == "" {
		return &chatkit.PreconditionError{Reason: "no conversation context established"}
	}
	taskID, ok := s.rec.PendingAuthTask()
	if !ok {
		return &chatkit.PreconditionError{Reason: "no pending authentication challenge"}
	}

	s.rec.ResolveAuth(taskID, AuthStatusCompleted)
	if err := s.persist(ctx); err != nil {
		return err
	}

	return s.resume(ctx, taskID)
}

// resume reattaches to the task's stream, falling back to a one-shot
// task fetch when the agent cannot stream.
func (s *Session) resume(ctx context.Context, taskID string) error {
	stream, err := s.client.ResubscribeTask(ctx, taskID)
	if err != nil {
		var unsupported *chatkit.UnsupportedOperationError
		if !errors.As(err, &unsupported) {
			return err
		}
		task, err := s.client.GetTask(ctx, &chatkit.TaskQueryParams{ID: taskID, HistoryLength: s.historyLength})
		if err != nil {
			return err
		}
		return s.fold(ctx, task)
	}
	return s.consume(ctx, stream)
}

// CancelAuthentication marks the pending challenge canceled without
// resuming the task.
func (s *Session) CancelAuthentication(ctx context.Context) error {
	taskID, ok := s.rec.PendingAuthTask()
	if !ok {
		return &chatkit.PreconditionError{Reason: "no pending authentication challenge"}
	}
	s.rec.ResolveAuth(taskID, AuthStatusCanceled)
	return s.persist(ctx)
}

// CancelTask cancels a live task and folds its final state.
func (s *Session) CancelTask(ctx context.Context, taskID string) error {
	task, err := s.client.CancelTask(ctx, taskID)
	if err != nil {
		return err
	}
	return s.fold(ctx, task)
}

// HydrateTasks seeds the transcript from durable server-side history,
// folding each task in order. History ordering is not guaranteed by
// servers; callers should sort tasks oldest-first before hydrating.
func (s *Session) HydrateTasks(ctx context.Context, contextID string, tasks []*chatkit.Task) error {
	s.rec.SetContextID(contextID)
	for _, task := range tasks {
		if task == nil {
			continue
		}
		s.rec.Apply(task)
	}
	return s.persist(ctx)
}

// Disconnect is a hard reset: it clears the context id, the transcript,
// and any persisted state. There is no way to resume afterwards short of
// server-side history hydration.
func (s *Session) Disconnect(ctx context.Context) error {
	s.rec.Reset()
	s.state = StateDisconnected

	if s.store == nil {
		return nil
	}
	var errs []error
	if err := s.store.Remove(ctx, s.messagesKey()); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Remove(ctx, s.contextKey()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) messagesKey() string { return s.sessionKey + "/messages" }
func (s *Session) contextKey() string  { return s.sessionKey + "/context" }

// persist writes the transcript and context id through to the store
// after every state change, so a restart can restore mid-conversation
// state.
func (s *Session) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	payload, err := json.Marshal(s.rec.Messages())
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := s.store.Set(ctx, s.messagesKey(), string(payload)); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	if contextID := s.rec.ContextID(); contextID != "" {
		if err := s.store.Set(ctx, s.contextKey(), contextID); err != nil {
			return fmt.Errorf("persist context id: %w", err)
		}
	}
	return nil
}

// restore loads persisted transcript and context id, if present.
func (s *Session) restore(ctx context.Context) error {
	if contextID, ok, err := s.store.Get(ctx, s.contextKey()); err != nil {
		return err
	} else if ok {
		s.rec.SetContextID(contextID)
	}

	payload, ok, err := s.store.Get(ctx, s.messagesKey())
	if err != nil || !ok {
		return err
	}

	var messages []*Message
	if err := json.Unmarshal([]byte(payload), &messages); err != nil {
		return fmt.Errorf("decode persisted transcript: %w", err)
	}
	s.rec.restoreMessages(messages)
	return nil
}

var _ io.Closer = (*sessionCloser)(nil)

// sessionCloser adapts Disconnect to io.Closer for callers that manage
// sessions with standard resource helpers.
type sessionCloser struct {
	s *Session
}

// Closer returns an io.Closer that disconnects the session.
func (s *Session) Closer() io.Closer { return &sessionCloser{s: s} }

func (c *sessionCloser) Close() error {
	return c.s.Disconnect(context.Background())
}
