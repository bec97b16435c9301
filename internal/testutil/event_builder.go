package testutil

import "github.com/hupe1980/chatmesh/core"

// EventBuilder provides a fluent helper for constructing agent update events.
// Example:
//
//	ev := NewEventBuilder("c1", "a1").Complete("m1").Build()
//
// Chain only the parts you need; the default status is thinking.
type EventBuilder struct {
	ev core.AgentUpdateEvent
}

// NewEventBuilder creates a builder for an event about participation agentID in conversationID.
func NewEventBuilder(conversationID, agentID string) *EventBuilder {
	return &EventBuilder{ev: core.AgentUpdateEvent{
		ConversationID:      conversationID,
		ConversationAgentID: agentID,
		Status:              core.AgentStatusThinking,
	}}
}

// Name sets the agent display name (chainable).
func (b *EventBuilder) Name(n string) *EventBuilder { b.ev.AgentName = n; return b }

// Complete marks the turn complete with the produced message (chainable).
func (b *EventBuilder) Complete(messageID string) *EventBuilder {
	b.ev.Status = core.AgentStatusComplete
	b.ev.MessageID = messageID
	return b
}

// Failed marks the turn failed (chainable).
func (b *EventBuilder) Failed(msg, errType string, retryable bool) *EventBuilder {
	b.ev.Status = core.AgentStatusError
	b.ev.Error = msg
	b.ev.ErrorType = errType
	b.ev.Retryable = retryable
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() core.AgentUpdateEvent { return b.ev }
