package chatmode

import "github.com/hupe1980/chatmesh/core"

// Intent is a pure description of desired activation changes. Both slices
// reference core.ConversationAgent.ID values. Intents are ephemeral: produced
// and consumed within a single store operation.
type Intent struct {
	ToEnable  []string `json:"to_enable"`
	ToDisable []string `json:"to_disable"`
}

// EmptyIntent returns a fresh intent with non-nil empty slices.
func EmptyIntent() Intent {
	return Intent{ToEnable: []string{}, ToDisable: []string{}}
}

// IsEmpty reports whether applying the intent would change nothing.
func (i Intent) IsEmpty() bool { return len(i.ToEnable) == 0 && len(i.ToDisable) == 0 }

// Handler computes intents for the events a conversation roster goes through.
//
// Implementations must be pure: they must not mutate the agents slice or its
// elements, must not retain it after returning, and must return a distinct
// Intent value on every call.
type Handler interface {
	// HandleAgentAdded is called after newAgentID joined; agents is the post-add roster.
	HandleAgentAdded(agents []core.ConversationAgent, newAgentID string) Intent
	// HandleAgentToggle is called when the user flips toggledAgentID.
	HandleAgentToggle(agents []core.ConversationAgent, toggledAgentID string) Intent
	// HandleConversationProgression is called after an agent finished its turn.
	HandleConversationProgression(agents []core.ConversationAgent) Intent
}

// RemovalHandler is an optional capability. Callers type-assert a Handler to
// it before consulting the policy on removals.
type RemovalHandler interface {
	// HandleAgentRemoved is called with the pre-removal roster.
	HandleAgentRemoved(agents []core.ConversationAgent, removedAgentID string) Intent
}
