// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestNormalizeRole(t *testing.T) {
	tests := map[string]Role{
		"user":      RoleUser,
		"User":      RoleUser,
		"agent":     RoleAgent,
		"assistant": RoleAgent,
		"model":     RoleAgent,
		"AGENT":     RoleAgent,
		"system":    RoleSystem,
	}
	for input, want := range tests {
		if got := NormalizeRole(input); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPartListUnmarshal(t *testing.T) {
	payload := `[
		{"kind": "text", "text": "hello"},
		{"type": "text", "text": "legacy tag"},
		{"kind": "file", "file": {"name": "a.txt", "uri": "https://example.com/a.txt"}},
		{"kind": "data", "data": {"key": "value"}},
		{"shape": "unknown"}
	]`

	var parts PartList
	if err := json.Unmarshal([]byte(payload), &parts); err != nil {
		t.Fatal(err)
	}
	if len(parts) != 5 {
		t.Fatalf("len(parts) = %d, want 5", len(parts))
	}

	if tp, ok := parts[0].(*TextPart); !ok || tp.Text != "hello" {
		t.Errorf("parts[0] = %#v, want TextPart %q", parts[0], "hello")
	}
	if tp, ok := parts[1].(*TextPart); !ok || tp.Text != "legacy tag" {
		t.Errorf("parts[1] = %#v, want TextPart decoded from legacy type tag", parts[1])
	}
	if fp, ok := parts[2].(*FilePart); !ok || fp.File.Name != "a.txt" {
		t.Errorf("parts[2] = %#v, want FilePart a.txt", parts[2])
	}
	if _, ok := parts[3].(*DataPart); !ok {
		t.Errorf("parts[3] type = %T, want *DataPart", parts[3])
	}
	// Unknown kinds are preserved as data parts rather than dropped.
	if dp, ok := parts[4].(*DataPart); !ok || dp.Kind != PartKindData {
		t.Errorf("parts[4] = %#v, want DataPart with default kind", parts[4])
	}
}

func TestMessageText(t *testing.T) {
	msg := &Message{
		Role: RoleAgent,
		Parts: PartList{
			NewTextPart("Hel"),
			&DataPart{Kind: PartKindData, Data: map[string]any{"skip": true}},
			NewTextPart("lo!"),
		},
	}
	if got := msg.Text(); got != "Hello!" {
		t.Errorf("Text() = %q, want %q", got, "Hello!")
	}

	var nilMsg *Message
	if got := nilMsg.Text(); got != "" {
		t.Errorf("nil Text() = %q, want empty", got)
	}
}

func TestMessageValidate(t *testing.T) {
	valid := NewUserTextMessage("m1", "hi")
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	tests := map[string]*Message{
		"nil message":  nil,
		"missing role": {Parts: PartList{NewTextPart("hi")}},
		"no parts":     {Role: RoleUser},
	}
	for name, msg := range tests {
		t.Run(name, func(t *testing.T) {
			if err := msg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewUserTextMessage("m1", "hi")
	msg.ContextID = "ctx-1"

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(msg, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
