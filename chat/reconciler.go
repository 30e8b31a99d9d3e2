// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/go-a2a/chatkit"
)

// artifactKey deduplicates artifact messages: one transcript entry per
// artifact per task, updated in place when the artifact is re-sent.
type artifactKey struct {
	taskID     string
	artifactID string
}

// Reconciler folds a sequence of protocol events into an ordered,
// deduplicated transcript. It is a pure in-memory fold with no I/O;
// persistence happens at the Session layer after each fold step.
//
// Events are processed strictly in the order given. Entries are keyed by
// (role, taskId, ordinal-within-task), so interleaved streams for
// different tasks update their own entries without corrupting each
// other's. A Reconciler is not safe for concurrent use.
type Reconciler struct {
	messages []*Message

	// index maps an identity to its position in messages, making the
	// continuation-or-new branch a single lookup.
	index map[identity]int

	// byID maps message ids to positions, for auth-status flips.
	byID map[string]int

	// artifacts maps artifact keys to positions.
	artifacts map[artifactKey]int

	// pendingAuth maps a task id to the id of its pending auth message.
	// At most one entry per task exists at a time.
	pendingAuth map[string]string

	contextID string

	// now and newID are replaceable for tests.
	now   func() time.Time
	newID func() string
}

// NewReconciler creates an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		index:       make(map[identity]int),
		byID:        make(map[string]int),
		artifacts:   make(map[artifactKey]int),
		pendingAuth: make(map[string]string),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Messages returns the current transcript in order. The returned slice
// is a copy; the entries are shared and must not be mutated by callers.
func (r *Reconciler) Messages() []*Message {
	out := make([]*Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ContextID returns the captured conversation context id, empty before
// the first event that carried one.
func (r *Reconciler) ContextID() string {
	return r.contextID
}

// SetContextID seeds the context id, e.g. when restoring a persisted
// session. A non-empty existing id is never overwritten.
func (r *Reconciler) SetContextID(contextID string) {
	if r.contextID == "" {
		r.contextID = contextID
	}
}

// Reset drops all transcript and correlation state.
func (r *Reconciler) Reset() {
	r.messages = nil
	r.index = make(map[identity]int)
	r.byID = make(map[string]int)
	r.artifacts = make(map[artifactKey]int)
	r.pendingAuth = make(map[string]string)
	r.contextID = ""
}

// AddUserMessage appends a locally authored user message and returns it.
// Server echoes of the same content are suppressed when they arrive.
func (r *Reconciler) AddUserMessage(content string) *Message {
	msg := &Message{
		ID:        r.newID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: r.now(),
	}
	r.byID[msg.ID] = len(r.messages)
	r.messages = append(r.messages, msg)
	return msg
}

// Apply folds one protocol event into the transcript.
func (r *Reconciler) Apply(event chatkit.Event) {
	switch ev := event.(type) {
	case *chatkit.Message:
		r.captureContext(ev.ContextID)
		r.upsert(ev, ev.TaskID, 0, false)

	case *chatkit.Task:
		r.captureContext(ev.ContextID)
		r.applyTask(ev)

	case *chatkit.TaskStatusUpdateEvent:
		r.captureContext(ev.ContextID)
		if ev.Status.Message != nil {
			r.upsert(ev.Status.Message, ev.TaskID, 0, ev.Status.State.Live())
		}
		if ev.Status.State.Terminal() {
			r.sweep(ev.TaskID)
		}

	case *chatkit.TaskArtifactUpdateEvent:
		r.captureContext(ev.ContextID)
		if ev.Artifact != nil {
			r.applyArtifact(ev.TaskID, ev.Artifact)
		}
	}
}

func (r *Reconciler) applyTask(task *chatkit.Task) {
	live := task.Status.State.Live()

	// Per-role ordinals within the history array are the stable part of
	// a message's identity across streaming re-sends of the same task.
	ordinals := make(map[chatkit.Role]int)
	for _, entry := range task.History {
		if entry == nil {
			continue
		}
		ordinal := ordinals[entry.Role]
		ordinals[entry.Role]++
		r.upsert(entry, task.ID, ordinal, live)
	}

	// A status message continues where the history left off for its
	// role, so re-sends merge instead of appending.
	if task.Status.Message != nil {
		r.upsert(task.Status.Message, task.ID, ordinals[task.Status.Message.Role], live)
	}

	for _, artifact := range task.Artifacts {
		if artifact != nil {
			r.applyArtifact(task.ID, artifact)
		}
	}

	if task.Status.State.Terminal() {
		r.sweep(task.ID)
	}
}

// upsert merges one protocol message into the transcript: a known
// identity is a streaming continuation and is updated in place; a new
// identity appends, unless it is a server echo of an existing user
// message.
func (r *Reconciler) upsert(msg *chatkit.Message, taskID string, ordinal int, live bool) {
	content := msg.Text()
	if content == "" {
		return
	}
	if taskID == "" {
		taskID = msg.TaskID
	}
	role := displayRole(msg.Role)

	id := identity{role: role, taskID: taskID, ordinal: ordinal}
	if pos, ok := r.index[id]; ok {
		existing := r.messages[pos]
		existing.Content = content
		existing.Streaming = live
		return
	}

	if role == RoleUser && r.hasUserEcho(content) {
		return
	}

	entry := &Message{
		ID:        r.newID(),
		Role:      role,
		Content:   content,
		Timestamp: r.now(),
		Streaming: live,
		TaskID:    taskID,
	}
	r.index[id] = len(r.messages)
	r.byID[entry.ID] = len(r.messages)
	r.messages = append(r.messages, entry)
}

// hasUserEcho reports whether an identical user message is already
// present. Servers echo just-sent user messages back inside task
// history; re-adding them would duplicate every turn.
func (r *Reconciler) hasUserEcho(content string) bool {
	for _, msg := range r.messages {
		if msg.Role == RoleUser && msg.Content == content {
			return true
		}
	}
	return false
}

// applyArtifact appends one assistant message per artifact, formatted as
// a labeled code block. A re-sent artifact updates its entry in place
// rather than appending a duplicate.
func (r *Reconciler) applyArtifact(taskID string, artifact *chatkit.Artifact) {
	text := artifact.Text()
	if text == "" {
		return
	}

	label := artifact.Name
	if label == "" {
		label = artifact.ArtifactID
	}
	content := fmt.Sprintf("%s\n```\n%s\n```", label, text)

	key := artifactKey{taskID: taskID, artifactID: artifact.ArtifactID}
	if pos, ok := r.artifacts[key]; ok {
		r.messages[pos].Content = content
		return
	}

	entry := &Message{
		ID:         r.newID(),
		Role:       RoleAssistant,
		Content:    content,
		Timestamp:  r.now(),
		TaskID:     taskID,
		ArtifactID: artifact.ArtifactID,
	}
	r.artifacts[key] = len(r.messages)
	r.byID[entry.ID] = len(r.messages)
	r.messages = append(r.messages, entry)
}

// sweep forces Streaming=false on every entry owned by the task. This is
// the single place an entry leaves the live-streaming state, and it
// fires even when the terminal event carries no content delta.
func (r *Reconciler) sweep(taskID string) {
	if taskID == "" {
		return
	}
	for _, msg := range r.messages {
		if msg.TaskID == taskID {
			msg.Streaming = false
		}
	}
}

// captureContext records the first non-empty context id seen in the
// session. Later differing ids never overwrite it.
func (r *Reconciler) captureContext(contextID string) {
	if r.contextID == "" && contextID != "" {
		r.contextID = contextID
	}
}

// BeginAuth inserts one pending system auth message for the task and
// returns its id. While a challenge for the task is pending, repeated
// calls return the existing message instead of creating a second one.
func (r *Reconciler) BeginAuth(taskID string, parts chatkit.PartList) string {
	if id, ok := r.pendingAuth[taskID]; ok {
		return id
	}

	entry := &Message{
		ID:        r.newID(),
		Role:      RoleSystem,
		Content:   "Authentication required",
		Timestamp: r.now(),
		TaskID:    taskID,
		Auth: &AuthEvent{
			Parts:  parts,
			Status: AuthStatusPending,
		},
	}
	r.byID[entry.ID] = len(r.messages)
	r.messages = append(r.messages, entry)
	r.pendingAuth[taskID] = entry.ID
	return entry.ID
}

// PendingAuthTask returns the task id of the single pending challenge,
// or "" when none is pending.
func (r *Reconciler) PendingAuthTask() (string, bool) {
	for taskID := range r.pendingAuth {
		return taskID, true
	}
	return "", false
}

// restoreMessages replaces the transcript with persisted entries,
// rebuilding the id index and re-arming any challenge that was still
// pending when the state was saved. Identity ordinals are not persisted;
// restored entries never merge with later streaming deltas, which can
// only concern new tasks anyway.
func (r *Reconciler) restoreMessages(messages []*Message) {
	r.messages = messages
	r.index = make(map[identity]int)
	r.byID = make(map[string]int)
	r.artifacts = make(map[artifactKey]int)
	r.pendingAuth = make(map[string]string)

	for i, msg := range r.messages {
		r.byID[msg.ID] = i
		if msg.ArtifactID != "" {
			r.artifacts[artifactKey{taskID: msg.TaskID, artifactID: msg.ArtifactID}] = i
		}
		if msg.Auth != nil && msg.Auth.Status == AuthStatusPending {
			r.pendingAuth[msg.TaskID] = msg.ID
		}
	}
}

// ResolveAuth flips the pending auth message for the task to the given
// terminal status. It mutates the original message located by id and
// never creates a new entry. It reports false when no challenge is
// pending for the task.
func (r *Reconciler) ResolveAuth(taskID string, status AuthStatus) bool {
	msgID, ok := r.pendingAuth[taskID]
	if !ok {
		return false
	}

	pos, ok := r.byID[msgID]
	if !ok {
		delete(r.pendingAuth, taskID)
		return false
	}

	msg := r.messages[pos]
	if msg.Auth != nil {
		msg.Auth.Status = status
	}
	delete(r.pendingAuth, taskID)
	return true
}
