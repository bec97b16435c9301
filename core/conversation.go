package core

import "time"

// ChatMode names the turn-activation policy of a conversation. The zero value
// means "unset" and is treated as ChatModeManual by every consumer.
type ChatMode string

const (
	// ChatModeManual leaves agent activation entirely to the user.
	ChatModeManual ChatMode = "manual"
	// ChatModeRoundRobin keeps a single enabled agent and rotates it after every completed turn.
	ChatModeRoundRobin ChatMode = "round-robin"
)

// OrDefault returns m, or ChatModeManual when m is unset.
func (m ChatMode) OrDefault() ChatMode {
	if m == "" {
		return ChatModeManual
	}
	return m
}

// Conversation is the top-level container for messages and participating agents.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ChatMode  ChatMode  `json:"chat_mode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationAgent is a participation record binding one agent configuration
// to one conversation. ID is unique per participation and distinct from AgentID.
//
// Enabled marks the agent as "on" for the current or next turn. DisplayOrder
// and AddedAt together define the deterministic turn order. IsActive is the
// soft-delete flag; inactive participations never take turns.
type ConversationAgent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AgentID        string    `json:"agent_id"`
	Enabled        bool      `json:"enabled"`
	DisplayOrder   int       `json:"display_order"`
	AddedAt        time.Time `json:"added_at"`
	IsActive       bool      `json:"is_active"`
	Color          string    `json:"color,omitempty"`
}

// CloneAgents returns a copy of the slice; ConversationAgent holds no
// references so a shallow element copy is a deep copy.
func CloneAgents(agents []ConversationAgent) []ConversationAgent {
	if agents == nil {
		return nil
	}
	out := make([]ConversationAgent, len(agents))
	copy(out, agents)
	return out
}

// Role identifies the author category of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation timeline. AgentID is set on
// assistant messages and references the ConversationAgent that produced it.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	AgentID        string    `json:"agent_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CloneMessages returns a copy of the slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// NewMessage is the payload accepted by Service.CreateMessage.
type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Role           Role   `json:"role"`
	AgentID        string `json:"agent_id,omitempty"`
}

// AgentUpdate is a partial update of a ConversationAgent. Nil fields are left untouched.
type AgentUpdate struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// ConversationUpdate is a partial update of a Conversation. Nil fields are left untouched.
type ConversationUpdate struct {
	Title    *string   `json:"title,omitempty"`
	ChatMode *ChatMode `json:"chat_mode,omitempty"`
}
