// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Event kind discriminators carried in the "kind" field of every stream
// event envelope.
const (
	KindMessage        = "message"
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is one unit yielded by a stream or returned by a blocking call: a
// Message, a Task, a TaskStatusUpdateEvent or a TaskArtifactUpdateEvent.
// The union is closed and discriminated by the kind tag so consumers can
// dispatch exhaustively.
type Event interface {
	// EventKind returns the wire discriminator for the event.
	EventKind() string
}

// TaskStatusUpdateEvent is sent by the server during streaming requests
// when a task's status changes.
type TaskStatusUpdateEvent struct {
	// TaskID is the task the update applies to.
	TaskID string `json:"taskId"`

	// ContextID is the conversation context the task belongs to.
	ContextID string `json:"contextId,omitzero"`

	// Status is the task's new status.
	Status TaskStatus `json:"status"`

	// Final indicates the server will send no further updates for this
	// request. The stream itself only ends when the connection closes.
	Final bool `json:"final,omitzero"`

	// Kind is the event discriminator, "status-update".
	Kind string `json:"kind,omitzero"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventKind implements [Event].
func (e *TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// TaskArtifactUpdateEvent is sent by the server during streaming requests
// when a task generates an artifact.
type TaskArtifactUpdateEvent struct {
	// TaskID is the task that generated the artifact.
	TaskID string `json:"taskId"`

	// ContextID is the conversation context the task belongs to.
	ContextID string `json:"contextId,omitzero"`

	// Artifact is the generated artifact.
	Artifact *Artifact `json:"artifact"`

	// Kind is the event discriminator, "artifact-update".
	Kind string `json:"kind,omitzero"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventKind implements [Event].
func (e *TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// UnmarshalEvent decodes one protocol event from a JSON-RPC result
// payload, dispatching on the kind tag. Envelopes without a kind tag are
// sniffed by field shape for compatibility with older servers.
func UnmarshalEvent(data []byte) (Event, error) {
	var tag struct {
		Kind     string `json:"kind"`
		ID       string `json:"id"`
		TaskID   string `json:"taskId"`
		Role     string `json:"role"`
		Artifact any    `json:"artifact"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, &ParseError{Payload: string(data), Err: err}
	}

	kind := tag.Kind
	if kind == "" {
		// Legacy servers omit the discriminator; infer it from the shape.
		switch {
		case tag.Role != "":
			kind = KindMessage
		case tag.ID != "":
			kind = KindTask
		case tag.Artifact != nil:
			kind = KindArtifactUpdate
		case tag.TaskID != "":
			kind = KindStatusUpdate
		}
	}

	switch kind {
	case KindMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, &ParseError{Payload: string(data), Err: err}
		}
		m.Kind = KindMessage
		return &m, nil
	case KindTask:
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, &ParseError{Payload: string(data), Err: err}
		}
		t.Kind = KindTask
		return &t, nil
	case KindStatusUpdate:
		var e TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, &ParseError{Payload: string(data), Err: err}
		}
		e.Kind = KindStatusUpdate
		return &e, nil
	case KindArtifactUpdate:
		var e TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, &ParseError{Payload: string(data), Err: err}
		}
		e.Kind = KindArtifactUpdate
		return &e, nil
	default:
		return nil, &ParseError{
			Payload: string(data),
			Err:     fmt.Errorf("unknown event kind %q", tag.Kind),
		}
	}
}

// UnknownTaskState reports the unrecognized state spelling carried by a
// task or status-update event, if any. Decoding maps such states to
// pending; callers with a logger use this to surface the original wire
// value.
func UnknownTaskState(event Event) (string, bool) {
	switch ev := event.(type) {
	case *Task:
		return ev.Status.UnknownState()
	case *TaskStatusUpdateEvent:
		return ev.Status.UnknownState()
	}
	return "", false
}
