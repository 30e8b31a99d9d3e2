// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Role represents the role of a message sender on the wire.
type Role string

// Role constants for message senders. Servers historically send either
// "agent" or "assistant" for the agent side; NormalizeRole folds both onto
// RoleAgent.
const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// NormalizeRole maps the role spellings observed across server versions
// onto the canonical constants.
func NormalizeRole(s string) Role {
	switch strings.ToLower(s) {
	case "user":
		return RoleUser
	case "agent", "assistant", "model":
		return RoleAgent
	case "system":
		return RoleSystem
	default:
		return Role(strings.ToLower(s))
	}
}

// Part kind discriminators.
const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// Part represents one segment of a message or artifact. It is a closed
// union of TextPart, FilePart and DataPart, discriminated by a "kind" tag
// on the wire.
type Part interface {
	// PartKind returns the wire discriminator for the part.
	PartKind() string
}

// TextPart is a text segment within message parts.
type TextPart struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (p *TextPart) PartKind() string { return PartKindText }

// NewTextPart creates a TextPart with the kind tag set.
func NewTextPart(text string) *TextPart {
	return &TextPart{Kind: PartKindText, Text: text}
}

// FileContent carries a file either by URI or by embedded bytes.
type FileContent struct {
	Name     string `json:"name,omitzero"`
	MIMEType string `json:"mimeType,omitzero"`
	URI      string `json:"uri,omitzero"`
	Bytes    string `json:"bytes,omitzero"`
}

// FilePart is a file segment within message parts.
type FilePart struct {
	Kind     string         `json:"kind"`
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (p *FilePart) PartKind() string { return PartKindFile }

// DataPart is a structured-data segment within message parts. Auth
// challenges arrive as data parts on a status message.
type DataPart struct {
	Kind     string         `json:"kind"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (p *DataPart) PartKind() string { return PartKindData }

// PartList is a slice of Part values that knows how to round-trip the
// kind-discriminated union through JSON.
type PartList []Part

// MarshalJSON implements json.Marshaler.
func (l PartList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]Part(l))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *PartList) UnmarshalJSON(data []byte) error {
	var raws []jsontext.Value
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("unmarshal parts: %w", err)
	}
	parts := make([]Part, 0, len(raws))
	for i, raw := range raws {
		part, err := unmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part at index %d: %w", i, err)
		}
		parts = append(parts, part)
	}
	*l = parts
	return nil
}

// unmarshalPart decodes one part by its kind tag. Parts with an unknown
// or missing kind are preserved as DataParts so callers can still see them.
func unmarshalPart(data []byte) (Part, error) {
	var tag struct {
		Kind string `json:"kind"`
		Type string `json:"type"` // legacy discriminator spelling
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	kind := tag.Kind
	if kind == "" {
		kind = tag.Type
	}

	switch strings.ToLower(kind) {
	case PartKindText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Kind = PartKindText
		return &p, nil
	case PartKindFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Kind = PartKindFile
		return &p, nil
	default:
		var p DataPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Kind == "" {
			p.Kind = PartKindData
		}
		return &p, nil
	}
}

// Message represents one message in a conversation, sent by either side.
type Message struct {
	// MessageID identifies the message. Servers may reuse or omit it
	// across streaming chunks of the same logical message, so it is not
	// a reliable dedup key.
	MessageID string `json:"messageId,omitzero"`

	// Role is the sender role.
	Role Role `json:"role"`

	// Parts is the message content.
	Parts PartList `json:"parts"`

	// TaskID is the task this message belongs to, when known.
	TaskID string `json:"taskId,omitzero"`

	// ContextID is the conversation context this message belongs to,
	// when known.
	ContextID string `json:"contextId,omitzero"`

	// Kind is the event discriminator, "message" when the message is
	// delivered as a stream event.
	Kind string `json:"kind,omitzero"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// EventKind implements [Event].
func (m *Message) EventKind() string { return KindMessage }

// Text returns the concatenation of all text parts, in order. Non-text
// parts contribute nothing to chat display.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if tp, ok := part.(*TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// Validate ensures the Message is well formed.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.Role == "" {
		return fmt.Errorf("message role cannot be empty")
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	return nil
}

// NewUserTextMessage creates a user message containing a single TextPart.
func NewUserTextMessage(messageID, text string) *Message {
	return &Message{
		MessageID: messageID,
		Role:      RoleUser,
		Parts:     PartList{NewTextPart(text)},
		Kind:      KindMessage,
	}
}
