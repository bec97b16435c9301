package store

import "github.com/hupe1980/chatmesh/core"

// ActiveConversation returns the record of the active conversation.
func ActiveConversation(s State) (core.Conversation, bool) {
	if s.ActiveConversationID == "" {
		return core.Conversation{}, false
	}
	return s.conversation(s.ActiveConversationID)
}

// EnabledAgents returns the participating agents that are enabled.
func EnabledAgents(s State) []core.ConversationAgent {
	out := []core.ConversationAgent{}
	for _, a := range s.ActiveConversationAgents {
		if a.IsActive && a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// IsAnyLoading reports whether any domain is loading.
func IsAnyLoading(s State) bool {
	l := s.Loading
	return l.Conversations || l.Messages || l.Agents || l.Sending
}

// ErrorFor returns the error slot of a domain.
func ErrorFor(s State, d core.Domain) *core.ErrorState {
	if p := s.Errors.slot(d); p != nil {
		return *p
	}
	return nil
}
