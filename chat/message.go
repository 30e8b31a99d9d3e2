// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat folds A2A protocol events into a stable, deduplicated
// chat transcript and manages the conversation context lifecycle,
// including persistence and authentication-challenge correlation.
package chat

import (
	"time"

	"github.com/go-a2a/chatkit"
)

// MessageRole is the display role of a chat message.
type MessageRole string

// Display roles.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// displayRole maps a protocol role onto the transcript's role set.
func displayRole(role chatkit.Role) MessageRole {
	switch chatkit.NormalizeRole(string(role)) {
	case chatkit.RoleUser:
		return RoleUser
	case chatkit.RoleSystem:
		return RoleSystem
	default:
		return RoleAssistant
	}
}

// AuthStatus is the lifecycle state of an authentication challenge.
type AuthStatus string

// Authentication challenge states.
const (
	AuthStatusPending   AuthStatus = "pending"
	AuthStatusCompleted AuthStatus = "completed"
	AuthStatusFailed    AuthStatus = "failed"
	AuthStatusCanceled  AuthStatus = "canceled"
)

// AuthEvent is the authentication payload attached to a system message
// raised for an auth challenge.
type AuthEvent struct {
	// Parts carries the challenge content from the agent.
	Parts chatkit.PartList `json:"parts,omitzero"`

	// Status tracks the challenge lifecycle.
	Status AuthStatus `json:"status"`
}

// Message is one reconciled transcript entry. Entries are created once
// per identity and mutated in place while Streaming is true; they become
// immutable once their owning task reaches a terminal state.
type Message struct {
	// ID is a locally generated unique identifier.
	ID string `json:"id"`

	// Role is the display role.
	Role MessageRole `json:"role"`

	// Content is the accumulated text content.
	Content string `json:"content"`

	// Timestamp is when the entry was created.
	Timestamp time.Time `json:"timestamp"`

	// Streaming is true while the owning task is live and more content
	// deltas may arrive.
	Streaming bool `json:"streaming"`

	// TaskID is the owning task, empty for messages outside a task.
	TaskID string `json:"taskId,omitzero"`

	// ArtifactID is set on messages synthesized from artifacts.
	ArtifactID string `json:"artifactId,omitzero"`

	// Auth is non-nil on system messages raised for an authentication
	// challenge.
	Auth *AuthEvent `json:"auth,omitzero"`
}

// identity is the deduplication key for transcript entries. The server's
// own message ids are not trusted: they may be reused or omitted across
// streaming chunks for the same logical message.
type identity struct {
	role    MessageRole
	taskID  string
	ordinal int
}
