// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-a2a/chatkit"
)

func newTestStream(body string, requestID int64) *EventStream {
	return NewEventStream(io.NopCloser(strings.NewReader(body)), requestID, nil)
}

func TestEventStreamNext(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"status\":{\"state\":\"running\"}}}\n" +
		"\n" +
		"data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"status\":{\"state\":\"completed\"},\"final\":true}}\n" +
		"\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	ctx := context.Background()

	first, err := stream.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	update, ok := first.(*chatkit.TaskStatusUpdateEvent)
	if !ok {
		t.Fatalf("event type = %T, want *TaskStatusUpdateEvent", first)
	}
	if update.Status.State != chatkit.TaskStateRunning {
		t.Errorf("State = %q, want running", update.Status.State)
	}

	second, err := stream.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if update, ok := second.(*chatkit.TaskStatusUpdateEvent); !ok || !update.Final {
		t.Errorf("second event = %#v, want final status update", second)
	}

	if _, err := stream.Next(ctx); err != io.EOF {
		t.Errorf("Next after close = %v, want io.EOF", err)
	}
}

func TestEventStreamMultiLineData(t *testing.T) {
	// Consecutive data: lines accumulate into one payload, joined by
	// newlines per SSE framing.
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\n" +
		"data: \"result\":{\"kind\":\"task\",\"id\":\"t1\",\"status\":{\"state\":\"running\"}}}\n" +
		"\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	event, err := stream.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	task, ok := event.(*chatkit.Task)
	if !ok {
		t.Fatalf("event type = %T, want *Task", event)
	}
	if task.ID != "t1" {
		t.Errorf("ID = %q, want t1", task.ID)
	}
}

func TestEventStreamIgnoresCommentsAndFields(t *testing.T) {
	body := ": keepalive\n" +
		"\n" +
		"event: update\n" +
		"id: 9\n" +
		"data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"kind\":\"task\",\"id\":\"t1\",\"status\":{\"state\":\"completed\"}}}\n" +
		"\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	event, err := stream.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := event.(*chatkit.Task); !ok {
		t.Fatalf("event type = %T, want *Task", event)
	}
}

func TestEventStreamFinalEventWithoutTrailingBlank(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"kind\":\"task\",\"id\":\"t1\",\"status\":{\"state\":\"completed\"}}}"

	stream := newTestStream(body, 1)
	defer stream.Close()

	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("Next = %v, want event", err)
	}
	if _, err := stream.Next(context.Background()); err != io.EOF {
		t.Errorf("Next = %v, want io.EOF", err)
	}
}

func TestEventStreamIDMismatchCounted(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":99,\"result\":{\"kind\":\"task\",\"id\":\"t1\",\"status\":{\"state\":\"running\"}}}\n" +
		"\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	// Mismatched ids are delivered anyway; the mismatch is observable
	// through the counter.
	if _, err := stream.Next(context.Background()); err != nil {
		t.Fatalf("Next = %v, want event despite id mismatch", err)
	}
	if got := stream.IDMismatches(); got != 1 {
		t.Errorf("IDMismatches() = %d, want 1", got)
	}
}

func TestEventStreamErrorEnvelope(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"error\":{\"code\":-32001,\"message\":\"Task not found\"}}\n" +
		"\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	_, err := stream.Next(context.Background())
	var rpcErr *chatkit.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Next = %v, want *RPCError", err)
	}
	if rpcErr.Code != chatkit.ErrorCodeTaskNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, chatkit.ErrorCodeTaskNotFound)
	}
}

func TestEventStreamMalformedPayload(t *testing.T) {
	body := "data: {not json\n\n"

	stream := newTestStream(body, 1)
	defer stream.Close()

	_, err := stream.Next(context.Background())
	var parseErr *chatkit.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Next = %v, want *ParseError", err)
	}
	if parseErr.Payload == "" {
		t.Error("ParseError.Payload is empty, want offending payload")
	}
}

func TestEventStreamContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := newTestStream("", 1)
	defer stream.Close()

	if _, err := stream.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next = %v, want context.Canceled", err)
	}
}

func TestEventStreamWarnsOnUnknownState(t *testing.T) {
	body := "data: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"status\":{\"state\":\"mysterious\"}}}\n" +
		"\n"

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	stream := NewEventStream(io.NopCloser(strings.NewReader(body)), 1, logger)
	defer stream.Close()

	event, err := stream.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	update, ok := event.(*chatkit.TaskStatusUpdateEvent)
	if !ok {
		t.Fatalf("event type = %T, want *TaskStatusUpdateEvent", event)
	}
	if update.Status.State != chatkit.TaskStatePending {
		t.Errorf("State = %q, want pending", update.Status.State)
	}
	if !strings.Contains(logs.String(), "mysterious") {
		t.Errorf("log output %q does not carry the original state spelling", logs.String())
	}
}
