// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"strconv"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// JSONRPCVersion is the JSON-RPC protocol version, always "2.0".
const JSONRPCVersion = "2.0"

// A2A RPC method names.
const (
	// MethodMessageSend is the method name for a blocking message send.
	MethodMessageSend = "message/send"

	// MethodMessageStream is the method name for a streaming message send.
	MethodMessageStream = "message/stream"

	// MethodTasksGet is the method name for getting a task.
	MethodTasksGet = "tasks/get"

	// MethodTasksCancel is the method name for canceling a task.
	MethodTasksCancel = "tasks/cancel"

	// MethodTasksResubscribe is the method name for resubscribing to a
	// task's event stream.
	MethodTasksResubscribe = "tasks/resubscribe"

	// MethodPushConfigSet is the method name for setting push
	// notification configuration.
	MethodPushConfigSet = "tasks/pushNotificationConfig/set"

	// MethodPushConfigGet is the method name for getting push
	// notification configuration.
	MethodPushConfigGet = "tasks/pushNotificationConfig/get"
)

// Request is a JSON-RPC 2.0 request envelope. IDs are strictly increasing
// integers assigned per client instance.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitzero"`
	ID      int64  `json:"id"`
}

// NewRequest creates a new JSON-RPC request.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is populated on a well-formed response.
type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      jsontext.Value `json:"id,omitzero"`
	Result  jsontext.Value `json:"result,omitzero"`
	Error   *RPCError      `json:"error,omitzero"`
}

// IDInt64 returns the response id as an int64. Servers echo ids back as
// numbers or strings depending on version; both are accepted. The second
// return value is false when no usable id is present.
func (r *Response) IDInt64() (int64, bool) {
	raw := strings.TrimSpace(string(r.ID))
	if raw == "" || raw == "null" {
		return 0, false
	}
	raw = strings.Trim(raw, `"`)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Event decodes the response result as one protocol event.
func (r *Response) Event() (Event, error) {
	if len(r.Result) == 0 {
		return nil, &ParseError{Payload: "", Err: errEmptyResult}
	}
	return UnmarshalEvent(r.Result)
}

// UnmarshalResponse parses a JSON-RPC response envelope.
func UnmarshalResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ParseError{Payload: string(data), Err: err}
	}
	return &resp, nil
}

// MessageSendParams are the parameters for message/send and
// message/stream.
type MessageSendParams struct {
	// Message is the message to send. Its ContextID must carry the
	// session's context id once one has been assigned.
	Message *Message `json:"message"`

	// Configuration tunes how the server handles the send.
	Configuration *SendConfiguration `json:"configuration,omitzero"`

	// Metadata is extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// SendConfiguration tunes server-side handling of a message send.
type SendConfiguration struct {
	// AcceptedOutputModes lists the media types the client can render.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitzero"`

	// HistoryLength limits how many history messages the server includes
	// in task events.
	HistoryLength int64 `json:"historyLength,omitzero"`

	// Blocking requests that the server hold the response until the task
	// reaches a terminal state.
	Blocking bool `json:"blocking,omitzero"`
}

// TaskIDParams are the parameters for simple task operations.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// TaskQueryParams are the parameters for tasks/get.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength int64          `json:"historyLength,omitzero"`
	Metadata      map[string]any `json:"metadata,omitzero"`
}

// PushNotificationConfig describes where and how the server should push
// task updates.
type PushNotificationConfig struct {
	URL   string `json:"url"`
	Token string `json:"token,omitzero"`
}

// TaskPushNotificationConfig binds a PushNotificationConfig to a task.
type TaskPushNotificationConfig struct {
	TaskID                 string                  `json:"taskId"`
	PushNotificationConfig *PushNotificationConfig `json:"pushNotificationConfig"`
}
