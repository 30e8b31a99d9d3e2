// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	// ErrorCodeParse is returned when the server encountered a parse error (-32700)
	ErrorCodeParse = -32700
	// ErrorCodeInvalidRequest is returned when the request was invalid (-32600)
	ErrorCodeInvalidRequest = -32600
	// ErrorCodeMethodNotFound is returned when the method doesn't exist (-32601)
	ErrorCodeMethodNotFound = -32601
	// ErrorCodeInvalidParams is returned when the parameters are invalid (-32602)
	ErrorCodeInvalidParams = -32602
	// ErrorCodeInternal is returned when there was an internal server error (-32603)
	ErrorCodeInternal = -32603
)

// A2A-specific error codes.
const (
	// ErrorCodeTaskNotFound is returned when the specified task ID was not found (-32001)
	ErrorCodeTaskNotFound = -32001
	// ErrorCodeTaskNotCancelable is returned when the task is in a final state (-32002)
	ErrorCodeTaskNotCancelable = -32002
	// ErrorCodePushNotificationNotSupported is returned when the agent does not support push notifications (-32003)
	ErrorCodePushNotificationNotSupported = -32003
	// ErrorCodeUnsupportedOperation is returned when the requested operation is not supported (-32004)
	ErrorCodeUnsupportedOperation = -32004
)

var errEmptyResult = errors.New("response carries no result")

// RPCError is a well-formed JSON-RPC error envelope, returned by a
// blocking call or embedded mid-stream. It carries the server's code and
// message verbatim.
type RPCError struct {
	// Code is the error code.
	Code int64 `json:"code"`
	// Message is a short description of the error.
	Message string `json:"message"`
	// Data contains optional additional error details.
	Data any `json:"data,omitzero"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error: code = %d, message = %s, data = %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error: code = %d, message = %s", e.Code, e.Message)
}

// IsRPCError reports whether err is an RPCError with the given code.
func IsRPCError(err error, code int64) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == code
	}
	return false
}

// DiscoveryError indicates the agent card was unreachable or malformed.
// It is fatal to connecting; no retry is built in.
type DiscoveryError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover agent card from %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// UnsupportedOperationError indicates a streaming or push-notification
// operation was invoked on an agent whose card does not advertise the
// capability. It is surfaced before any network call is made.
type UnsupportedOperationError struct {
	Operation string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("agent does not support %s", e.Operation)
}

// TransportError indicates a non-2xx HTTP response whose body was not a
// JSON-RPC error envelope, or a network-level failure. The blocking call
// path may retry it; streaming calls never retry internally.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates a malformed SSE payload or JSON body. It carries
// the offending raw payload; the stream it occurred on is dead and the
// caller must resubscribe to continue.
type ParseError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// PreconditionError indicates an operation was invoked without the state
// it requires, e.g. completing authentication with no known context or
// task id. It is surfaced immediately and never retried.
type PreconditionError struct {
	Reason string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}
