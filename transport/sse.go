// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-a2a/chatkit"
)

// EventStream decodes a Server-Sent-Events body into protocol events.
// Each SSE event is one complete JSON-RPC response envelope; events are
// pulled one at a time with Next.
//
// An EventStream is not safe for concurrent use by multiple goroutines,
// except for Close and IDMismatches which may be called from any
// goroutine.
type EventStream struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	requestID int64
	logger    *slog.Logger

	idMismatches atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewEventStream wraps an SSE response body. requestID is the id of the
// JSON-RPC request that opened the stream; envelopes carrying a different
// id are logged and counted but still delivered.
func NewEventStream(body io.ReadCloser, requestID int64, logger *slog.Logger) *EventStream {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStream{
		body:      body,
		reader:    bufio.NewReader(body),
		requestID: requestID,
		logger:    logger,
	}
}

// Next reads the next protocol event from the stream. It returns io.EOF
// when the server closes the stream, a [chatkit.RPCError] when the server
// terminates the stream with an error envelope, and a
// [chatkit.ParseError] when a payload is malformed. After any non-nil
// error the stream is dead.
func (s *EventStream) Next(ctx context.Context) (chatkit.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := s.readEvent()
		if err != nil {
			return nil, err
		}
		if len(payload) == 0 {
			// Comment-only or field-free event; keep reading.
			continue
		}

		resp, err := chatkit.UnmarshalResponse(payload)
		if err != nil {
			return nil, err
		}

		if id, ok := resp.IDInt64(); ok && id != s.requestID {
			s.idMismatches.Add(1)
			s.logger.Warn("stream envelope id does not match request id",
				slog.Int64("want", s.requestID), slog.Int64("got", id))
		}

		if resp.Error != nil {
			// The server ended the stream with a structured error.
			return nil, resp.Error
		}

		event, err := resp.Event()
		if err != nil {
			return nil, err
		}
		if raw, ok := chatkit.UnknownTaskState(event); ok {
			s.logger.Warn("unrecognized task state mapped to pending",
				slog.String("state", raw))
		}
		return event, nil
	}
}

// readEvent accumulates data: lines until a blank line terminates the
// event, per the SSE framing rules. Multiple data lines are joined with
// newlines.
func (s *EventStream) readEvent() ([]byte, error) {
	var data [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(line) == 0 && len(data) == 0 {
				return nil, io.EOF
			}
			if err != io.EOF {
				return nil, &chatkit.TransportError{Err: err}
			}
			// Final event may lack the trailing blank line.
		}

		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			// Blank line with nothing buffered; keep reading.

		case line[0] == ':':
			// Comment line, ignored.

		case bytes.HasPrefix(line, []byte("data:")):
			value := line[len("data:"):]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
			data = append(data, value)

		default:
			// event:, id:, retry: and unknown fields are ignored; the
			// protocol carries everything inside the data payload.
		}

		if err == io.EOF {
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			return nil, io.EOF
		}
	}
}

// IDMismatches reports how many envelopes arrived with an id differing
// from the request that opened the stream.
func (s *EventStream) IDMismatches() int64 {
	return s.idMismatches.Load()
}

// Close closes the underlying response body. It is safe to call multiple
// times.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
