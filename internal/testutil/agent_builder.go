package testutil

import (
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// BaseTime is the fixed instant builders derive AddedAt values from so tests
// stay deterministic.
var BaseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// AgentBuilder provides a fluent helper for constructing roster entries.
// Example:
//
//	a := NewAgentBuilder("a1").Order(0).Enabled(true).Build()
//
// Defaults: conversation "c1", agent id "agent-<id>", active, disabled,
// AddedAt = BaseTime.
type AgentBuilder struct {
	agent core.ConversationAgent
}

// NewAgentBuilder creates a builder for a participation with the given id.
func NewAgentBuilder(id string) *AgentBuilder {
	return &AgentBuilder{agent: core.ConversationAgent{
		ID:             id,
		ConversationID: "c1",
		AgentID:        "agent-" + id,
		AddedAt:        BaseTime,
		IsActive:       true,
	}}
}

// Conversation sets the owning conversation id (chainable).
func (b *AgentBuilder) Conversation(id string) *AgentBuilder { b.agent.ConversationID = id; return b }

// AgentID sets the agent configuration id (chainable).
func (b *AgentBuilder) AgentID(id string) *AgentBuilder { b.agent.AgentID = id; return b }

// Enabled sets the enabled flag (chainable).
func (b *AgentBuilder) Enabled(on bool) *AgentBuilder { b.agent.Enabled = on; return b }

// Order sets the display order (chainable).
func (b *AgentBuilder) Order(n int) *AgentBuilder { b.agent.DisplayOrder = n; return b }

// AddedAfter sets AddedAt to BaseTime plus d (chainable).
func (b *AgentBuilder) AddedAfter(d time.Duration) *AgentBuilder {
	b.agent.AddedAt = BaseTime.Add(d)
	return b
}

// Inactive marks the participation as soft-deleted (chainable).
func (b *AgentBuilder) Inactive() *AgentBuilder { b.agent.IsActive = false; return b }

// Build returns the constructed participation.
func (b *AgentBuilder) Build() core.ConversationAgent { return b.agent }

// Roster builds agents with ids in display order 0..n-1; enabledID (may be
// empty) is the only enabled one.
func Roster(enabledID string, ids ...string) []core.ConversationAgent {
	agents := make([]core.ConversationAgent, 0, len(ids))
	for i, id := range ids {
		agents = append(agents, NewAgentBuilder(id).Order(i).Enabled(id == enabledID).Build())
	}
	return agents
}

// EnabledSet returns the ids of enabled agents as a set.
func EnabledSet(agents []core.ConversationAgent) map[string]bool {
	set := map[string]bool{}
	for _, a := range agents {
		if a.Enabled {
			set[a.ID] = true
		}
	}
	return set
}
