package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.Service = (*InMemoryService)(nil)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, conversationID, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, [2]string{conversationID, messageID})
	return d.err
}

// newTestService uses a deterministic clock and sequential ids.
func newTestService(optFns ...func(o *Options)) *InMemoryService {
	var (
		mu  sync.Mutex
		seq int
		now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	)
	base := func(o *Options) {
		o.NewID = func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}
		o.Now = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(time.Second)
			return now
		}
	}
	return NewInMemoryService(append([]func(o *Options){base}, optFns...)...)
}

func TestInMemoryService_Conversations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	first, err := svc.CreateConversation(ctx, "First")
	require.NoError(t, err)
	assert.Equal(t, core.ChatModeManual, first.ChatMode)

	second, err := svc.CreateConversation(ctx, "  Second ")
	require.NoError(t, err)
	assert.Equal(t, "Second", second.Title)

	convs, err := svc.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID, "most recently updated first")

	_, err = svc.CreateMessage(ctx, core.NewMessage{ConversationID: first.ID, Content: "hi"})
	require.NoError(t, err)

	convs, err = svc.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, convs[0].ID)
}

func TestInMemoryService_CreateConversationValidation(t *testing.T) {
	_, err := newTestService().CreateConversation(context.Background(), " ")
	require.ErrorIs(t, err, core.ErrValidation)
	assert.False(t, core.IsRetryable(err))
}

func TestInMemoryService_UpdateConversation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	rr := core.ChatModeRoundRobin
	updated, err := svc.UpdateConversation(ctx, conv.ID, core.ConversationUpdate{ChatMode: &rr})
	require.NoError(t, err)
	assert.Equal(t, rr, updated.ChatMode)
	assert.Equal(t, "Chat", updated.Title)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt))

	empty := core.ChatMode("")
	_, err = svc.UpdateConversation(ctx, conv.ID, core.ConversationUpdate{ChatMode: &empty})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.UpdateConversation(ctx, "missing", core.ConversationUpdate{ChatMode: &rr})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemoryService_Messages(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	m1, err := svc.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "one"})
	require.NoError(t, err)
	assert.Equal(t, core.RoleUser, m1.Role)

	_, err = svc.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "two", Role: core.RoleAssistant, AgentID: "p1"})
	require.NoError(t, err)

	msgs, err := svc.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "p1", msgs[1].AgentID)

	msgs[0].Content = "mutated"
	again, err := svc.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", again[0].Content)
}

func TestInMemoryService_CreateMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	_, err = svc.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "", Role: "robot"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")
	assert.Contains(t, verr.Fields, "role")

	_, err = svc.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "x", Role: core.RoleAssistant})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "agent_id")

	_, err = svc.CreateMessage(ctx, core.NewMessage{ConversationID: "missing", Content: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemoryService_AgentLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	a, err := svc.AddAgent(ctx, conv.ID, "writer")
	require.NoError(t, err)
	b, err := svc.AddAgent(ctx, conv.ID, "critic")
	require.NoError(t, err)

	assert.False(t, a.Enabled)
	assert.True(t, a.IsActive)
	assert.Equal(t, 0, a.DisplayOrder)
	assert.Equal(t, 1, b.DisplayOrder)
	assert.NotEqual(t, a.Color, b.Color)

	_, err = svc.AddAgent(ctx, conv.ID, "writer")
	assert.ErrorIs(t, err, core.ErrValidation)

	on := true
	updated, err := svc.UpdateConversationAgent(ctx, b.ID, core.AgentUpdate{Enabled: &on})
	require.NoError(t, err)
	assert.True(t, updated.Enabled)

	agents, err := svc.ListConversationAgents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, a.ID, agents[0].ID)

	require.NoError(t, svc.RemoveAgent(ctx, conv.ID, "critic"))
	agents, err = svc.ListConversationAgents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, a.ID, agents[0].ID)

	_, err = svc.UpdateConversationAgent(ctx, b.ID, core.AgentUpdate{Enabled: &on})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveAgent(ctx, conv.ID, "critic"), core.ErrNotFound)

	// Re-adding gets a fresh participation after every earlier one.
	again, err := svc.AddAgent(ctx, conv.ID, "critic")
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, again.ID)
	assert.Equal(t, 2, again.DisplayOrder)
}

func TestInMemoryService_SendToAgents(t *testing.T) {
	ctx := context.Background()
	d := &recordingDispatcher{}
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)
	msg, err := svc.CreateMessage(ctx, core.NewMessage{ConversationID: conv.ID, Content: "go"})
	require.NoError(t, err)

	require.NoError(t, svc.SendToAgents(ctx, conv.ID, msg.ID), "no dispatcher attached")

	svc.AttachDispatcher(d)
	require.NoError(t, svc.SendToAgents(ctx, conv.ID, msg.ID))
	assert.Equal(t, [][2]string{{conv.ID, msg.ID}}, d.calls)

	assert.ErrorIs(t, svc.SendToAgents(ctx, conv.ID, "nope"), core.ErrNotFound)
	assert.ErrorIs(t, svc.SendToAgents(ctx, "nope", msg.ID), core.ErrNotFound)

	d.err = fmt.Errorf("queue full")
	assert.EqualError(t, svc.SendToAgents(ctx, conv.ID, msg.ID), "queue full")
}

func TestInMemoryService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService().ListConversations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryService_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	conv, err := svc.CreateConversation(ctx, "Chat")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.AddAgent(ctx, conv.ID, fmt.Sprintf("agent-%d", i))
			_, _ = svc.ListConversationAgents(ctx, conv.ID)
		}(i)
	}
	wg.Wait()

	agents, err := svc.ListConversationAgents(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, agents, 20)

	seen := map[int]bool{}
	for _, a := range agents {
		seen[a.DisplayOrder] = true
	}
	assert.Len(t, seen, 20)
}
