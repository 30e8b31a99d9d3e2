// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/transport"
)

// Stream delivers decoded protocol events from a streaming call. Events
// are consumed from Events; after the channel closes, Err reports why
// the stream ended. A nil Err means the server completed the stream
// normally.
type Stream struct {
	events chan chatkit.Event
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	source    *transport.EventStream
}

// newStream starts a goroutine pumping decoded events from the transport
// stream into the Stream's channel until the stream ends or is closed.
func newStream(ctx context.Context, c *Client, source *transport.EventStream) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan chatkit.Event, c.opts.streamBufferSize),
		cancel: cancel,
		source: source,
	}

	go func() {
		defer close(s.events)
		defer source.Close()

		for {
			event, err := source.Next(ctx)
			if err != nil {
				// A deliberate Close surfaces as a read error on the
				// closed body; that is not a stream failure.
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					s.setErr(err)
				}
				return
			}

			if update, ok := event.(*chatkit.TaskStatusUpdateEvent); ok && isAuthRequired(update.Status) {
				challenge := AuthChallenge{
					TaskID:    update.TaskID,
					ContextID: update.ContextID,
				}
				if update.Status.Message != nil {
					challenge.Challenges = update.Status.Message.Parts
				}
				c.publishAuthChallenge(challenge)
			}

			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return s
}

// newSingleEventStream wraps one already-decoded event as a completed
// stream, for servers that answer a stream request with a plain JSON
// response.
func newSingleEventStream(c *Client, event chatkit.Event) *Stream {
	s := &Stream{
		events: make(chan chatkit.Event, 1),
		cancel: func() {},
	}
	if update, ok := event.(*chatkit.TaskStatusUpdateEvent); ok && isAuthRequired(update.Status) {
		challenge := AuthChallenge{TaskID: update.TaskID, ContextID: update.ContextID}
		if update.Status.Message != nil {
			challenge.Challenges = update.Status.Message.Parts
		}
		c.publishAuthChallenge(challenge)
	}
	s.events <- event
	close(s.events)
	return s
}

// Events returns the channel of decoded protocol events. It is closed
// when the stream ends for any reason.
func (s *Stream) Events() <-chan chatkit.Event {
	return s.events
}

// Err reports why the stream ended. It is meaningful only after Events
// has been closed. A server-sent error envelope surfaces here as a
// *chatkit.RPCError; a malformed payload as a *chatkit.ParseError.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// IDMismatches reports how many stream envelopes carried an unexpected
// request id. Zero for single-event streams.
func (s *Stream) IDMismatches() int64 {
	if s.source == nil {
		return 0
	}
	return s.source.IDMismatches()
}

// Close stops the stream and releases the underlying connection. It is
// safe to call multiple times and safe to call concurrently with reads.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.source != nil {
			s.source.Close()
		}
	})
	return nil
}
