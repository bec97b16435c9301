package store

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/testutil"
	"github.com/hupe1980/chatmesh/metrics"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestSelectConversation_LoadsData(t *testing.T) {
	svc := &testutil.MockService{}
	svc.On("ListMessages", mock.Anything, "c1").
		Return([]core.Message{{ID: "m1", ConversationID: "c1"}}, nil)
	svc.On("ListConversationAgents", mock.Anything, "c1").
		Return(testutil.Roster("a1", "a1", "a2"), nil)

	var resetFor []string
	s := New(func(o *Options) {
		o.Service = svc
		o.ResetScopedState = func(id string) { resetFor = append(resetFor, id) }
	})

	require.NoError(t, s.SelectConversation(context.Background(), "c1"))

	snap := s.Snapshot()
	assert.Equal(t, "c1", snap.ActiveConversationID)
	assert.NotEmpty(t, snap.RequestToken)
	assert.Len(t, snap.ActiveMessages, 1)
	assert.Len(t, snap.ActiveConversationAgents, 2)
	assert.False(t, snap.Loading.Messages)
	assert.False(t, snap.Loading.Agents)
	assert.Equal(t, []string{"c1"}, resetFor)
}

func TestSelectConversation_ClearsBeforeFetching(t *testing.T) {
	svc := &testutil.MockService{}
	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "c2").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return([]core.Message{}, nil)
	svc.On("ListConversationAgents", mock.Anything, "c2").
		Return([]core.ConversationAgent{}, nil)

	s := seeded(svc, core.ChatModeManual, testutil.Roster("a1", "a1"))
	s.state.ActiveMessages = []core.Message{{ID: "old"}}
	s.state.Errors.Messages = &core.ErrorState{Message: "old"}

	done := make(chan error, 1)
	go func() { done <- s.SelectConversation(context.Background(), "c2") }()
	<-started

	mid := s.Snapshot()
	assert.Equal(t, "c2", mid.ActiveConversationID)
	assert.Empty(t, mid.ActiveMessages)
	assert.Empty(t, mid.ActiveConversationAgents)
	assert.True(t, mid.Loading.Messages)
	assert.True(t, mid.Loading.Agents)
	assert.Nil(t, mid.Errors.Messages)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, IsAnyLoading(s.Snapshot()))
}

func TestSelectConversation_EmptyIDDeselects(t *testing.T) {
	svc := &testutil.MockService{}
	reset := 0
	s := seeded(svc, core.ChatModeManual, testutil.Roster("a1", "a1"), func(o *Options) {
		o.ResetScopedState = func(string) { reset++ }
	})

	require.NoError(t, s.SelectConversation(context.Background(), ""))

	snap := s.Snapshot()
	assert.Empty(t, snap.ActiveConversationID)
	assert.Empty(t, snap.ActiveConversationAgents)
	assert.False(t, IsAnyLoading(snap))
	assert.Equal(t, 1, reset)
	svc.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestSelectConversation_LastSelectionWins(t *testing.T) {
	svc := &testutil.MockService{}
	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "A").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return([]core.Message{{ID: "mA", ConversationID: "A"}}, nil)
	svc.On("ListConversationAgents", mock.Anything, "A").
		Return([]core.ConversationAgent{testutil.NewAgentBuilder("a1").Conversation("A").Build()}, nil)
	svc.On("ListMessages", mock.Anything, "B").
		Return([]core.Message{{ID: "mB", ConversationID: "B"}}, nil)
	svc.On("ListConversationAgents", mock.Anything, "B").
		Return([]core.ConversationAgent{testutil.NewAgentBuilder("b1").Conversation("B").Build()}, nil)

	reg := prometheus.NewRegistry()
	s := New(func(o *Options) {
		o.Service = svc
		o.Metrics = metrics.New(reg)
	})

	done := make(chan error, 1)
	go func() { done <- s.SelectConversation(context.Background(), "A") }()
	<-started

	require.NoError(t, s.SelectConversation(context.Background(), "B"))
	close(release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, "B", snap.ActiveConversationID)
	require.Len(t, snap.ActiveMessages, 1)
	assert.Equal(t, "mB", snap.ActiveMessages[0].ID)
	require.Len(t, snap.ActiveConversationAgents, 1)
	assert.Equal(t, "b1", snap.ActiveConversationAgents[0].ID)
	assert.False(t, IsAnyLoading(snap))
	assert.Equal(t, 1.0, counterValue(t, reg, "chatmesh_stale_results_discarded_total"))
}

func TestSelectConversation_StaleFailureIsDropped(t *testing.T) {
	svc := &testutil.MockService{}
	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "A").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return(nil, errors.New("network down"))
	svc.On("ListConversationAgents", mock.Anything, "A").
		Return(nil, errors.New("network down"))
	svc.On("ListMessages", mock.Anything, "B").Return([]core.Message{}, nil)
	svc.On("ListConversationAgents", mock.Anything, "B").Return([]core.ConversationAgent{}, nil)

	s := New(func(o *Options) { o.Service = svc })

	done := make(chan error, 1)
	go func() { done <- s.SelectConversation(context.Background(), "A") }()
	<-started
	require.NoError(t, s.SelectConversation(context.Background(), "B"))
	close(release)

	assert.NoError(t, <-done)
	snap := s.Snapshot()
	assert.Nil(t, snap.Errors.Messages)
	assert.Nil(t, snap.Errors.Agents)
}

func TestSelectConversation_FetchFailureRecordsPerDomain(t *testing.T) {
	svc := &testutil.MockService{}
	svc.On("ListMessages", mock.Anything, "c1").Return(nil, errors.New("timeout"))
	svc.On("ListConversationAgents", mock.Anything, "c1").
		Return(testutil.Roster("a1", "a1"), nil)

	s := New(func(o *Options) { o.Service = svc })
	err := s.SelectConversation(context.Background(), "c1")
	require.Error(t, err)

	snap := s.Snapshot()
	require.NotNil(t, snap.Errors.Messages)
	assert.Equal(t, core.OperationLoad, snap.Errors.Messages.Operation)
	assert.True(t, snap.Errors.Messages.IsRetryable)
	assert.Zero(t, snap.Errors.Messages.RetryCount)
	assert.Nil(t, snap.Errors.Agents)
	assert.Len(t, snap.ActiveConversationAgents, 1)
	assert.False(t, IsAnyLoading(snap))
}

func TestSelectConversation_TrimsToMostRecent(t *testing.T) {
	msgs := []core.Message{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"}}
	svc := &testutil.MockService{}
	svc.On("ListMessages", mock.Anything, "c1").Return(msgs, nil)
	svc.On("ListConversationAgents", mock.Anything, "c1").Return([]core.ConversationAgent{}, nil)

	s := New(func(o *Options) {
		o.Service = svc
		o.MaxMessages = 2
	})
	require.NoError(t, s.SelectConversation(context.Background(), "c1"))

	snap := s.Snapshot()
	require.Len(t, snap.ActiveMessages, 2)
	assert.Equal(t, "m3", snap.ActiveMessages[0].ID)
	assert.Equal(t, "m4", snap.ActiveMessages[1].ID)
}

func TestRefreshActiveConversation_KeepsDataUntilCommit(t *testing.T) {
	svc := &testutil.MockService{}
	started := make(chan struct{})
	release := make(chan struct{})
	svc.On("ListMessages", mock.Anything, "c1").
		Run(func(mock.Arguments) { close(started); <-release }).
		Return([]core.Message{{ID: "m1"}}, nil)
	svc.On("ListConversationAgents", mock.Anything, "c1").
		Return(testutil.Roster("a2", "a1", "a2"), nil)

	s := seeded(svc, core.ChatModeManual, testutil.Roster("a1", "a1", "a2"))

	done := make(chan error, 1)
	go func() { done <- s.RefreshActiveConversation(context.Background()) }()
	<-started

	mid := s.Snapshot()
	assert.Len(t, mid.ActiveConversationAgents, 2)
	assert.NotEqual(t, "t0", mid.RequestToken)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, map[string]bool{"a2": true}, enabledIDs(s))
}

func TestRefreshActiveConversation_NoSelection(t *testing.T) {
	svc := &testutil.MockService{}
	s := New(func(o *Options) { o.Service = svc })

	require.NoError(t, s.RefreshActiveConversation(context.Background()))
	assert.Empty(t, svc.Calls)
}
