package core

import "github.com/google/uuid"

// AgentStatus is the lifecycle stage reported for an agent turn.
type AgentStatus string

const (
	AgentStatusThinking AgentStatus = "thinking"
	AgentStatusComplete AgentStatus = "complete"
	AgentStatusError    AgentStatus = "error"
)

// AgentUpdateEvent is emitted by the agent pipeline while a turn is in flight.
// MessageID is set on complete events; Error, ErrorType and Retryable on
// error events. After emission it should be treated as immutable.
type AgentUpdateEvent struct {
	ConversationID      string      `json:"conversation_id"`
	ConversationAgentID string      `json:"conversation_agent_id"`
	Status              AgentStatus `json:"status"`
	MessageID           string      `json:"message_id,omitempty"`
	Error               string      `json:"error,omitempty"`
	AgentName           string      `json:"agent_name,omitempty"`
	ErrorType           string      `json:"error_type,omitempty"`
	Retryable           bool        `json:"retryable,omitempty"`
}

// IsTerminal reports whether the event ends the agent's turn.
func (e AgentUpdateEvent) IsTerminal() bool {
	return e.Status == AgentStatusComplete || e.Status == AgentStatusError
}

// EventSource delivers AgentUpdateEvents to registered callbacks.
//
// SubscribeToAgentUpdates returns a disposer that stops delivery. Sources on
// platforms without event support return nil.
type EventSource interface {
	SubscribeToAgentUpdates(fn func(AgentUpdateEvent)) (unsubscribe func())
}

// NewID generates a new unique identifier (UUID v4 string). It is used for
// entity ids as well as the store's request tokens.
func NewID() string { return uuid.NewString() }
