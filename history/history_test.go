// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-a2a/chatkit"
)

func TestListContexts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/contexts", r.URL.Path)
		fmt.Fprint(w, `[
			{"id":"ctx-1","name":"First chat"},
			{"id":"ctx-2","name":"Archived chat","archived":true}
		]`)
	}))
	defer server.Close()

	contexts, err := NewClient(server.URL).ListContexts(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "ctx-1", contexts[0].ID)
	assert.True(t, contexts[1].Archived)
}

func TestListTasksSortsAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/contexts/ctx-1/tasks", r.URL.Path)
		// Out of order, with mixed-case and legacy state spellings.
		fmt.Fprint(w, `[
			{"id":"t2","contextId":"ctx-1","status":{"state":"Working","timestamp":"2025-01-02T00:00:00Z"}},
			{"id":"t1","contextId":"ctx-1","status":{"state":"COMPLETED","timestamp":"2025-01-01T00:00:00Z"}}
		]`)
	}))
	defer server.Close()

	tasks, err := NewClient(server.URL).ListTasks(context.Background(), "ctx-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "t1", tasks[0].ID, "tasks are sorted oldest first")
	assert.Equal(t, chatkit.TaskStateCompleted, tasks[0].Status.State)
	assert.Equal(t, chatkit.TaskStateRunning, tasks[1].Status.State, "legacy working state normalizes to running")
}

func TestListTasksRequiresContextID(t *testing.T) {
	_, err := NewClient("http://unused.example.com").ListTasks(context.Background(), "")
	require.Error(t, err)
}

func TestUpdateContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/contexts/ctx-1", r.URL.Path)
		fmt.Fprint(w, `{"id":"ctx-1","name":"Renamed"}`)
	}))
	defer server.Close()

	name := "Renamed"
	updated, err := NewClient(server.URL).UpdateContext(context.Background(), "ctx-1", &ContextPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestUpdateContextFallsBackToSingularRoute(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/contexts/ctx-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.Equal(t, "/context/ctx-1", r.URL.Path)
		fmt.Fprint(w, `{"id":"ctx-1","archived":true}`)
	}))
	defer server.Close()

	archived := true
	updated, err := NewClient(server.URL).UpdateContext(context.Background(), "ctx-1", &ContextPatch{Archived: &archived})
	require.NoError(t, err)
	assert.True(t, updated.Archived)
	assert.Equal(t, []string{"/contexts/ctx-1", "/context/ctx-1"}, paths)
}

func TestUpdateContextSurfacesTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	name := "x"
	_, err := NewClient(server.URL).UpdateContext(context.Background(), "ctx-1", &ContextPatch{Name: &name})

	var transportErr *chatkit.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusInternalServerError, transportErr.StatusCode)
}
