package core

import "context"

// Service is the persistence and pipeline boundary consumed by the
// conversation store. Every method is a suspension point and may fail;
// implementations must return values the caller can own (no shared slices).
type Service interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	ListConversationAgents(ctx context.Context, conversationID string) ([]ConversationAgent, error)

	CreateConversation(ctx context.Context, title string) (Conversation, error)
	CreateMessage(ctx context.Context, msg NewMessage) (Message, error)

	// SendToAgents hands a persisted user message to the agent pipeline.
	// Progress is reported asynchronously through an EventSource.
	SendToAgents(ctx context.Context, conversationID, messageID string) error

	AddAgent(ctx context.Context, conversationID, agentID string) (ConversationAgent, error)
	RemoveAgent(ctx context.Context, conversationID, agentID string) error

	UpdateConversationAgent(ctx context.Context, id string, update AgentUpdate) (ConversationAgent, error)
	UpdateConversation(ctx context.Context, id string, update ConversationUpdate) (Conversation, error)
}
