package chatmode

import "github.com/hupe1980/chatmesh/core"

// RoundRobin keeps exactly one agent enabled and rotates it in turn order
// (see SortByTurnOrder) each time a turn completes.
//
// Contract:
//   - After any intent is applied at most one agent is enabled
//   - Zero enabled agents is a valid resting state (the user switched the
//     only active agent off); progression then does nothing
//   - Rotation wraps from the last agent to the first
type RoundRobin struct{}

// NewRoundRobin creates a RoundRobin handler.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

// HandleAgentAdded enables the new agent when nobody holds the turn. When
// another agent already holds it, the newcomer is disabled if it arrived enabled.
func (*RoundRobin) HandleAgentAdded(agents []core.ConversationAgent, newAgentID string) Intent {
	intent := EmptyIntent()
	others := enabledIDs(agents, newAgentID)
	newcomer, found := findAgent(agents, newAgentID)

	switch {
	case len(others) == 0 && (!found || !newcomer.Enabled):
		intent.ToEnable = append(intent.ToEnable, newAgentID)
	case len(others) > 0 && found && newcomer.Enabled:
		intent.ToDisable = append(intent.ToDisable, newAgentID)
	}
	return intent
}

// HandleAgentToggle switches the toggled agent off, or on while switching the
// current turn holder off.
func (*RoundRobin) HandleAgentToggle(agents []core.ConversationAgent, toggledAgentID string) Intent {
	intent := EmptyIntent()
	toggled, ok := findAgent(agents, toggledAgentID)
	if !ok {
		return intent
	}
	if toggled.Enabled {
		intent.ToDisable = append(intent.ToDisable, toggledAgentID)
		return intent
	}
	intent.ToDisable = append(intent.ToDisable, enabledIDs(agents, toggledAgentID)...)
	intent.ToEnable = append(intent.ToEnable, toggledAgentID)
	return intent
}

// HandleConversationProgression passes the turn to the next agent in turn order.
func (*RoundRobin) HandleConversationProgression(agents []core.ConversationAgent) Intent {
	intent := EmptyIntent()
	if len(agents) <= 1 {
		return intent
	}
	ordered := SortByTurnOrder(agents)
	current := -1
	for i, a := range ordered {
		if a.Enabled {
			current = i
			break
		}
	}
	if current < 0 {
		return intent
	}
	next := (current + 1) % len(ordered)
	intent.ToDisable = append(intent.ToDisable, ordered[current].ID)
	intent.ToEnable = append(intent.ToEnable, ordered[next].ID)
	return intent
}

// HandleAgentRemoved re-elects the first remaining agent when the removed
// agent was the only one holding the turn.
func (*RoundRobin) HandleAgentRemoved(agents []core.ConversationAgent, removedAgentID string) Intent {
	intent := EmptyIntent()
	remaining := make([]core.ConversationAgent, 0, len(agents))
	for _, a := range agents {
		if a.ID != removedAgentID {
			remaining = append(remaining, a)
		}
	}
	if len(remaining) == 0 || len(enabledIDs(remaining, "")) > 0 {
		return intent
	}
	intent.ToEnable = append(intent.ToEnable, SortByTurnOrder(remaining)[0].ID)
	return intent
}
