// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatkit provides a headless chat client for the Agent-to-Agent
// (A2A) protocol: the wire data model, a JSON-RPC/SSE transport, a typed
// protocol client, and a streaming reconciler that folds protocol events
// into a stable chat transcript.
//
// The root package holds the protocol types shared by every subsystem.
// Transport, client, chat-state and history concerns each live in their
// own subpackage.
package chatkit

// Version is the current version of the chatkit module.
const Version = "0.1.0"

// AgentCardWellKnownPath is the standard path for retrieving an agent's
// public AgentCard, relative to the agent's base URL.
//
// Example usage: https://agent.example.com/.well-known/agent.json
const AgentCardWellKnownPath = "/.well-known/agent.json"
