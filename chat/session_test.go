// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-a2a/chatkit"
	"github.com/go-a2a/chatkit/client"
)

// rpcHandler handles one decoded JSON-RPC request.
type rpcHandler func(w http.ResponseWriter, req *chatkit.Request)

// newSessionServer serves an agent card and dispatches RPC calls by
// method.
func newSessionServer(t *testing.T, streaming bool, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc(chatkit.AgentCardWellKnownPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"name":"test-agent","url":"%s/rpc","capabilities":{"streaming":%v}}`, server.URL, streaming)
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req chatkit.Request
		if err := json.UnmarshalRead(r.Body, &req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected RPC method %q", req.Method)
			return
		}
		handler(w, &req)
	})

	return server
}

// sentContextID digs the message's contextId out of a decoded request.
func sentContextID(req *chatkit.Request) string {
	params, ok := req.Params.(map[string]any)
	if !ok {
		return ""
	}
	message, ok := params["message"].(map[string]any)
	if !ok {
		return ""
	}
	contextID, _ := message["contextId"].(string)
	return contextID
}

func newConnectedSession(t *testing.T, server *httptest.Server, opts ...SessionOption) *Session {
	t.Helper()

	c, err := client.New(client.WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	session := NewSession(c, opts...)
	require.NoError(t, session.Connect(context.Background()))
	require.Equal(t, StateConnected, session.State())
	return session
}

func completedTaskEnvelope(id int64, text string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"kind":"task","id":"t1","contextId":"ctx-1","status":{"state":"completed"},"history":[{"role":"agent","parts":[{"kind":"text","text":%q}]}]}}`, id, text)
}

func TestSessionStreamingExchange(t *testing.T) {
	server := newSessionServer(t, true, map[string]rpcHandler{
		chatkit.MethodMessageStream: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"kind\":\"task\",\"id\":\"t1\",\"contextId\":\"ctx-1\",\"status\":{\"state\":\"running\"},\"history\":[{\"role\":\"agent\",\"parts\":[{\"kind\":\"text\",\"text\":\"Hel\"}]}]}}\n\n", req.ID)
			fmt.Fprintf(w, "data: %s\n\n", completedTaskEnvelope(req.ID, "Hello!"))
		},
	})

	session := newConnectedSession(t, server)
	require.NoError(t, session.Send(context.Background(), "hi"))

	messages := session.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "Hello!", messages[1].Content)
	assert.False(t, messages[1].Streaming)

	assert.Equal(t, "ctx-1", session.ContextID())
}

func TestSessionBlockingExchange(t *testing.T) {
	server := newSessionServer(t, false, map[string]rpcHandler{
		chatkit.MethodMessageSend: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, completedTaskEnvelope(req.ID, "Hello!"))
		},
	})

	session := newConnectedSession(t, server)
	require.NoError(t, session.Send(context.Background(), "hi"))

	messages := session.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello!", messages[1].Content)
	assert.Equal(t, "ctx-1", session.ContextID())
}

func TestSessionThreadsContextID(t *testing.T) {
	var contexts []string
	server := newSessionServer(t, false, map[string]rpcHandler{
		chatkit.MethodMessageSend: func(w http.ResponseWriter, req *chatkit.Request) {
			contexts = append(contexts, sentContextID(req))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, completedTaskEnvelope(req.ID, "ok"))
		},
	})

	session := newConnectedSession(t, server)
	ctx := context.Background()
	require.NoError(t, session.Send(ctx, "first"))
	require.NoError(t, session.Send(ctx, "second"))

	require.Len(t, contexts, 2)
	assert.Empty(t, contexts[0], "no context id exists before the first exchange")
	assert.Equal(t, "ctx-1", contexts[1], "captured context id is echoed on the next send")
}

func TestSessionPersistence(t *testing.T) {
	server := newSessionServer(t, false, map[string]rpcHandler{
		chatkit.MethodMessageSend: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, completedTaskEnvelope(req.ID, "Hello!"))
		},
	})

	store := NewMemoryStore()
	ctx := context.Background()

	session := newConnectedSession(t, server, WithStore(store, "chat-1"))
	require.NoError(t, session.Send(ctx, "hi"))

	// The transcript and context id are written through after every
	// state change.
	payload, ok, err := store.Get(ctx, "chat-1/messages")
	require.NoError(t, err)
	require.True(t, ok)
	var persisted []*Message
	require.NoError(t, json.Unmarshal([]byte(payload), &persisted))
	assert.Len(t, persisted, 2)

	contextID, ok, err := store.Get(ctx, "chat-1/context")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ctx-1", contextID)

	// A fresh session over the same store resumes mid-conversation.
	restored := newConnectedSession(t, server, WithStore(store, "chat-1"))
	require.Len(t, restored.Messages(), 2)
	assert.Equal(t, "ctx-1", restored.ContextID())
}

func TestSessionDisconnectHardReset(t *testing.T) {
	server := newSessionServer(t, false, map[string]rpcHandler{
		chatkit.MethodMessageSend: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, completedTaskEnvelope(req.ID, "Hello!"))
		},
	})

	store := NewMemoryStore()
	ctx := context.Background()

	session := newConnectedSession(t, server, WithStore(store, "chat-1"))
	require.NoError(t, session.Send(ctx, "hi"))
	require.NoError(t, session.Disconnect(ctx))

	assert.Equal(t, StateDisconnected, session.State())
	assert.Empty(t, session.Messages())
	assert.Empty(t, session.ContextID())

	_, ok, err := store.Get(ctx, "chat-1/messages")
	require.NoError(t, err)
	assert.False(t, ok, "persisted transcript survives disconnect")
	_, ok, err = store.Get(ctx, "chat-1/context")
	require.NoError(t, err)
	assert.False(t, ok, "persisted context id survives disconnect")

	require.ErrorContains(t, session.Send(ctx, "again"), "not connected")
}

func TestSessionAuthPreconditions(t *testing.T) {
	server := newSessionServer(t, false, nil)
	session := newConnectedSession(t, server)

	var precondition *chatkit.PreconditionError
	err := session.CompleteAuthentication(context.Background())
	require.ErrorAs(t, err, &precondition, "no context id yet")

	err = session.CancelAuthentication(context.Background())
	require.ErrorAs(t, err, &precondition, "no pending challenge")
}

func TestSessionAuthFlow(t *testing.T) {
	server := newSessionServer(t, true, map[string]rpcHandler{
		chatkit.MethodMessageStream: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"contextId\":\"ctx-1\",\"status\":{\"state\":\"auth-required\",\"message\":{\"role\":\"agent\",\"parts\":[{\"kind\":\"data\",\"data\":{\"url\":\"https://example.com/authorize\"}}]}}}}\n\n", req.ID)
		},
		chatkit.MethodTasksResubscribe: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: %s\n\n", completedTaskEnvelope(req.ID, "authorized, here you go"))
		},
	})

	session := newConnectedSession(t, server)
	ctx := context.Background()
	require.NoError(t, session.Send(ctx, "do something gated"))

	// The challenge interjected one pending system message.
	messages := session.Messages()
	require.Len(t, messages, 2)
	authMsg := messages[1]
	require.NotNil(t, authMsg.Auth)
	assert.Equal(t, RoleSystem, authMsg.Role)
	assert.Equal(t, AuthStatusPending, authMsg.Auth.Status)
	assert.Len(t, authMsg.Auth.Parts, 1)

	// Completion flips that same message and resumes the task stream.
	require.NoError(t, session.CompleteAuthentication(ctx))

	messages = session.Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, AuthStatusCompleted, messages[1].Auth.Status)
	assert.Equal(t, "authorized, here you go", messages[2].Content)
	assert.False(t, messages[2].Streaming)

	// A second completion has nothing pending to complete.
	var precondition *chatkit.PreconditionError
	require.True(t, errors.As(session.CompleteAuthentication(ctx), &precondition))
}

func TestSessionAuthCancel(t *testing.T) {
	server := newSessionServer(t, true, map[string]rpcHandler{
		chatkit.MethodMessageStream: func(w http.ResponseWriter, req *chatkit.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"kind\":\"status-update\",\"taskId\":\"t1\",\"contextId\":\"ctx-1\",\"status\":{\"state\":\"auth-required\"}}}\n\n", req.ID)
		},
	})

	session := newConnectedSession(t, server)
	ctx := context.Background()
	require.NoError(t, session.Send(ctx, "do something gated"))
	require.NoError(t, session.CancelAuthentication(ctx))

	messages := session.Messages()
	require.Len(t, messages, 2)
	require.NotNil(t, messages[1].Auth)
	assert.Equal(t, AuthStatusCanceled, messages[1].Auth.Status)
}

func TestSessionHydrateTasks(t *testing.T) {
	server := newSessionServer(t, false, nil)
	session := newConnectedSession(t, server)

	tasks := []*chatkit.Task{
		{
			ID:        "t1",
			ContextID: "ctx-1",
			Status:    chatkit.TaskStatus{State: chatkit.TaskStateCompleted},
			History: []*chatkit.Message{
				{Role: chatkit.RoleUser, Parts: chatkit.PartList{chatkit.NewTextPart("hi")}},
				{Role: chatkit.RoleAgent, Parts: chatkit.PartList{chatkit.NewTextPart("Hello!")}},
			},
		},
	}

	require.NoError(t, session.HydrateTasks(context.Background(), "ctx-1", tasks))

	messages := session.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "ctx-1", session.ContextID())
	assert.Equal(t, "Hello!", messages[1].Content)
}
