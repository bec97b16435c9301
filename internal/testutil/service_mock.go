package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/chatmesh/core"
)

// MockService is a testify mock of core.Service. Tests set expectations with
// On(...) and verify call order with Calls or EnabledCalls.
type MockService struct{ mock.Mock }

var _ core.Service = (*MockService)(nil)

func (m *MockService) ListConversations(ctx context.Context) ([]core.Conversation, error) {
	args := m.Called(ctx)
	convs, _ := args.Get(0).([]core.Conversation)
	return convs, args.Error(1)
}

func (m *MockService) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]core.Message)
	return msgs, args.Error(1)
}

func (m *MockService) ListConversationAgents(ctx context.Context, conversationID string) ([]core.ConversationAgent, error) {
	args := m.Called(ctx, conversationID)
	agents, _ := args.Get(0).([]core.ConversationAgent)
	return agents, args.Error(1)
}

func (m *MockService) CreateConversation(ctx context.Context, title string) (core.Conversation, error) {
	args := m.Called(ctx, title)
	conv, _ := args.Get(0).(core.Conversation)
	return conv, args.Error(1)
}

func (m *MockService) CreateMessage(ctx context.Context, msg core.NewMessage) (core.Message, error) {
	args := m.Called(ctx, msg)
	out, _ := args.Get(0).(core.Message)
	return out, args.Error(1)
}

func (m *MockService) SendToAgents(ctx context.Context, conversationID, messageID string) error {
	return m.Called(ctx, conversationID, messageID).Error(0)
}

func (m *MockService) AddAgent(ctx context.Context, conversationID, agentID string) (core.ConversationAgent, error) {
	args := m.Called(ctx, conversationID, agentID)
	a, _ := args.Get(0).(core.ConversationAgent)
	return a, args.Error(1)
}

func (m *MockService) RemoveAgent(ctx context.Context, conversationID, agentID string) error {
	return m.Called(ctx, conversationID, agentID).Error(0)
}

func (m *MockService) UpdateConversationAgent(ctx context.Context, id string, update core.AgentUpdate) (core.ConversationAgent, error) {
	args := m.Called(ctx, id, update)
	a, _ := args.Get(0).(core.ConversationAgent)
	return a, args.Error(1)
}

func (m *MockService) UpdateConversation(ctx context.Context, id string, update core.ConversationUpdate) (core.Conversation, error) {
	args := m.Called(ctx, id, update)
	c, _ := args.Get(0).(core.Conversation)
	return c, args.Error(1)
}

// EnabledUpdate matches a core.AgentUpdate setting Enabled to on.
func EnabledUpdate(on bool) any {
	return mock.MatchedBy(func(u core.AgentUpdate) bool {
		return u.Enabled != nil && *u.Enabled == on
	})
}

// ToggleCall describes one UpdateConversationAgent call.
type ToggleCall struct {
	ID      string
	Enabled bool
}

// EnabledCalls returns the UpdateConversationAgent calls in the order they were made.
func (m *MockService) EnabledCalls() []ToggleCall {
	var out []ToggleCall
	for _, c := range m.Calls {
		if c.Method != "UpdateConversationAgent" {
			continue
		}
		u := c.Arguments.Get(2).(core.AgentUpdate)
		on := u.Enabled != nil && *u.Enabled
		out = append(out, ToggleCall{ID: c.Arguments.String(1), Enabled: on})
	}
	return out
}
