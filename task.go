// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// TaskState represents the lifecycle state of a Task.
type TaskState string

// Canonical task states. States arrive from servers in lowercase or
// mixed case and under legacy spellings; ParseTaskState folds all of
// them onto these constants.
const (
	TaskStatePending      TaskState = "pending"
	TaskStateRunning      TaskState = "running"
	TaskStateCompleted    TaskState = "completed"
	TaskStateFailed       TaskState = "failed"
	TaskStateCanceled     TaskState = "canceled"
	TaskStateAuthRequired TaskState = "auth-required"
)

// taskStateAliases maps legacy server spellings onto canonical states.
var taskStateAliases = map[string]TaskState{
	"submitted":     TaskStatePending,
	"queued":        TaskStatePending,
	"working":       TaskStateRunning,
	"in-progress":   TaskStateRunning,
	"cancelled":     TaskStateCanceled,
	"auth_required": TaskStateAuthRequired,
}

// ParseTaskState normalizes a wire state string to a canonical TaskState.
// The second return value is false when the state was not recognized; the
// caller decides whether to log or drop it.
func ParseTaskState(s string) (TaskState, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch TaskState(lower) {
	case TaskStatePending, TaskStateRunning, TaskStateCompleted,
		TaskStateFailed, TaskStateCanceled, TaskStateAuthRequired:
		return TaskState(lower), true
	}
	if canonical, ok := taskStateAliases[lower]; ok {
		return canonical, true
	}
	return TaskStatePending, false
}

// Terminal reports whether the state is a terminal task state. Once a
// task reaches a terminal state no further content deltas arrive for it.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// Live reports whether messages owned by a task in this state are still
// streaming.
func (s TaskState) Live() bool {
	return s == TaskStatePending || s == TaskStateRunning
}

// TaskStatus is a TaskState with an optional accompanying message and
// timestamp.
type TaskStatus struct {
	// State is the task's lifecycle state.
	State TaskState `json:"state"`

	// Message is an additional status message for the client; auth
	// challenges are carried here on auth-required updates.
	Message *Message `json:"message,omitzero"`

	// Timestamp is an ISO 8601 datetime string recording when the status
	// was observed.
	Timestamp string `json:"timestamp,omitzero"`

	// unknownState preserves the wire spelling when the state was not
	// recognized, so a layer with a logger can surface it.
	unknownState string
}

// UnknownState returns the unrecognized wire spelling that was mapped to
// the pending state during decoding, if any.
func (ts TaskStatus) UnknownState() (string, bool) {
	return ts.unknownState, ts.unknownState != ""
}

// UnmarshalJSON implements json.Unmarshaler, normalizing the state's case
// and legacy spellings.
func (ts *TaskStatus) UnmarshalJSON(data []byte) error {
	type shadow struct {
		State     string   `json:"state"`
		Message   *Message `json:"message"`
		Timestamp string   `json:"timestamp"`
	}
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	state, ok := ParseTaskState(s.State)
	ts.State = state
	if !ok && s.State != "" {
		ts.unknownState = s.State
	}
	ts.Message = s.Message
	ts.Timestamp = s.Timestamp
	return nil
}

// Artifact represents an output generated during a task.
type Artifact struct {
	// ArtifactID uniquely identifies the artifact within its task.
	ArtifactID string `json:"artifactId"`

	// Name is an optional human readable label.
	Name string `json:"name,omitzero"`

	// Description is an optional description of the artifact.
	Description string `json:"description,omitzero"`

	// Parts is the artifact content.
	Parts PartList `json:"parts"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Text returns the concatenation of the artifact's text parts, in order.
func (a *Artifact) Text() string {
	if a == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range a.Parts {
		if tp, ok := part.(*TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// Validate ensures the Artifact is well formed.
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}
	if a.ArtifactID == "" {
		return fmt.Errorf("artifact ID cannot be empty")
	}
	return nil
}

// Task represents one unit of work within a conversation context.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// ContextID is the server-assigned conversation context the task
	// belongs to.
	ContextID string `json:"contextId,omitzero"`

	// Status is the current lifecycle status of the task.
	Status TaskStatus `json:"status"`

	// History is the message history known for the task, oldest first.
	History []*Message `json:"history,omitzero"`

	// Artifacts are the outputs generated by the task so far.
	Artifacts []*Artifact `json:"artifacts,omitzero"`

	// Kind is the event discriminator, "task".
	Kind string `json:"kind,omitzero"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventKind implements [Event].
func (t *Task) EventKind() string { return KindTask }

// UnmarshalJSON implements json.Unmarshaler. Some server versions send
// the status under "taskStatus" instead of "status" with identical
// meaning; "status" wins when both are present.
func (t *Task) UnmarshalJSON(data []byte) error {
	type shadow struct {
		ID         string         `json:"id"`
		ContextID  string         `json:"contextId"`
		Status     jsontext.Value `json:"status"`
		TaskStatus jsontext.Value `json:"taskStatus"`
		History    []*Message     `json:"history"`
		Artifacts  []*Artifact    `json:"artifacts"`
		Kind       string         `json:"kind"`
		Metadata   map[string]any `json:"metadata"`
	}
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	t.ID = s.ID
	t.ContextID = s.ContextID
	t.History = s.History
	t.Artifacts = s.Artifacts
	t.Kind = s.Kind
	t.Metadata = s.Metadata

	raw := s.Status
	if len(raw) == 0 || string(raw) == "null" {
		raw = s.TaskStatus
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &t.Status); err != nil {
			return fmt.Errorf("unmarshal task status: %w", err)
		}
	}
	return nil
}
