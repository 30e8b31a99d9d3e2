// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package chatkit

import (
	"fmt"
)

// AgentCapabilities defines the optional protocol features an agent
// advertises in its card.
type AgentCapabilities struct {
	// Streaming is true if the agent supports SSE streaming responses.
	Streaming bool `json:"streaming,omitzero"`

	// PushNotifications is true if the agent can notify the client of
	// updates through push notification configs.
	PushNotifications bool `json:"pushNotifications,omitzero"`

	// StateTransitionHistory is true if the agent exposes status change
	// history for tasks.
	StateTransitionHistory bool `json:"stateTransitionHistory,omitzero"`
}

// AgentCard is the static capability manifest for a remote agent. It is
// fetched once from the agent's well-known path (or supplied literally)
// and never mutated afterwards.
type AgentCard struct {
	// Name is the human readable name of the agent.
	Name string `json:"name"`

	// Description describes what the agent can do.
	Description string `json:"description,omitzero"`

	// Version is the agent's version string; the format is up to the provider.
	Version string `json:"version,omitzero"`

	// URL is the agent's JSON-RPC service endpoint. A card without an
	// endpoint is unusable.
	URL string `json:"url"`

	// Capabilities are the optional protocol features the agent supports.
	Capabilities AgentCapabilities `json:"capabilities,omitzero"`
}

// Validate ensures the AgentCard carries a usable service endpoint.
func (c *AgentCard) Validate() error {
	if c == nil {
		return fmt.Errorf("agent card cannot be nil")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card endpoint URL cannot be empty")
	}
	return nil
}
