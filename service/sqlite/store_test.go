package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
)

type dispatchFunc func(ctx context.Context, conversationID, messageID string) error

func (f dispatchFunc) Dispatch(ctx context.Context, conversationID, messageID string) error {
	return f(ctx, conversationID, messageID)
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "chatmesh.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_ConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	conv, err := s.CreateConversation(ctx, "Persisted")
	require.NoError(t, err)

	rr := core.ChatModeRoundRobin
	_, err = s.UpdateConversation(ctx, conv.ID, core.ConversationUpdate{ChatMode: &rr})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	convs, err := reopened.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Persisted", convs[0].Title)
	assert.Equal(t, rr, convs[0].ChatMode)
	assert.True(t, convs[0].CreatedAt.Equal(conv.CreatedAt))
}

func TestStore_Messages(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	conv, err := s.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: content})
		require.NoError(t, err)
	}
	_, err = s.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "reply", Role: core.RoleAssistant, AgentID: "p1"})
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, "p1", msgs[3].AgentID)

	_, err = s.CreateMessage(ctx, core.NewMessage{ConversationID: "missing", Content: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: ""})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.ListMessages(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_Agents(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	conv, err := s.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	a, err := s.AddAgent(ctx, conv.ID, "writer")
	require.NoError(t, err)
	b, err := s.AddAgent(ctx, conv.ID, "critic")
	require.NoError(t, err)
	assert.Equal(t, 0, a.DisplayOrder)
	assert.Equal(t, 1, b.DisplayOrder)
	assert.False(t, a.Enabled)

	_, err = s.AddAgent(ctx, conv.ID, "writer")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = s.AddAgent(ctx, "missing", "writer")
	assert.ErrorIs(t, err, core.ErrNotFound)

	on := true
	updated, err := s.UpdateConversationAgent(ctx, b.ID, core.AgentUpdate{Enabled: &on})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)
	assert.True(t, updated.AddedAt.Equal(b.AddedAt))

	agents, err := s.ListConversationAgents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, []string{a.ID, b.ID}, []string{agents[0].ID, agents[1].ID})

	require.NoError(t, s.RemoveAgent(ctx, conv.ID, "critic"))
	assert.ErrorIs(t, s.RemoveAgent(ctx, conv.ID, "critic"), core.ErrNotFound)

	agents, err = s.ListConversationAgents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)

	_, err = s.UpdateConversationAgent(ctx, b.ID, core.AgentUpdate{Enabled: &on})
	assert.ErrorIs(t, err, core.ErrNotFound)

	again, err := s.AddAgent(ctx, conv.ID, "critic")
	require.NoError(t, err)
	assert.Equal(t, 2, again.DisplayOrder)
}

func TestStore_SendToAgents(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	conv, err := s.CreateConversation(ctx, "Chat")
	require.NoError(t, err)
	msg, err := s.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "go"})
	require.NoError(t, err)

	require.NoError(t, s.SendToAgents(ctx, conv.ID, msg.ID))

	var got []string
	s.AttachDispatcher(dispatchFunc(func(_ context.Context, c, m string) error {
		got = append(got, c+"/"+m)
		return nil
	}))
	require.NoError(t, s.SendToAgents(ctx, conv.ID, msg.ID))
	assert.Equal(t, []string{conv.ID + "/" + msg.ID}, got)

	assert.ErrorIs(t, s.SendToAgents(ctx, conv.ID, "nope"), core.ErrNotFound)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateConversation(context.Background(), "Ephemeral")
	require.NoError(t, err)
	convs, err := s.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}
