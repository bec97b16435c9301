package store

import "github.com/hupe1980/chatmesh/core"

// Loading holds the per-domain loading flags.
type Loading struct {
	Conversations bool `json:"conversations"`
	Messages      bool `json:"messages"`
	Agents        bool `json:"agents"`
	Sending       bool `json:"sending"`
}

// Errors holds one error slot per domain; nil means no error.
type Errors struct {
	Conversations *core.ErrorState `json:"conversations,omitempty"`
	Messages      *core.ErrorState `json:"messages,omitempty"`
	Agents        *core.ErrorState `json:"agents,omitempty"`
	Sending       *core.ErrorState `json:"sending,omitempty"`
}

// State is a point-in-time view of the store. Values returned by the store
// are deep copies and safe for caller mutation.
type State struct {
	ActiveConversationID     string                   `json:"active_conversation_id,omitempty"`
	Conversations            []core.Conversation      `json:"conversations"`
	ActiveMessages           []core.Message           `json:"active_messages"`
	ActiveConversationAgents []core.ConversationAgent `json:"active_conversation_agents"`
	Loading                  Loading                  `json:"loading"`
	Errors                   Errors                   `json:"errors"`

	// RequestToken fences the active selection. It is never persisted.
	RequestToken string `json:"-"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	if s.Conversations != nil {
		c.Conversations = make([]core.Conversation, len(s.Conversations))
		copy(c.Conversations, s.Conversations)
	}
	c.ActiveMessages = core.CloneMessages(s.ActiveMessages)
	c.ActiveConversationAgents = core.CloneAgents(s.ActiveConversationAgents)
	c.Errors = Errors{
		Conversations: s.Errors.Conversations.Clone(),
		Messages:      s.Errors.Messages.Clone(),
		Agents:        s.Errors.Agents.Clone(),
		Sending:       s.Errors.Sending.Clone(),
	}
	return c
}

func (e *Errors) slot(d core.Domain) **core.ErrorState {
	switch d {
	case core.DomainConversations:
		return &e.Conversations
	case core.DomainMessages:
		return &e.Messages
	case core.DomainAgents:
		return &e.Agents
	case core.DomainSending:
		return &e.Sending
	default:
		return nil
	}
}

func (s *State) conversation(id string) (core.Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return core.Conversation{}, false
}

// modeOf resolves the chat mode of a conversation, defaulting to manual when
// the conversation is unknown or its mode unset.
func (s *State) modeOf(conversationID string) core.ChatMode {
	c, _ := s.conversation(conversationID)
	return c.ChatMode.OrDefault()
}

// roster returns a copy of the participating (is_active) agents.
func (s *State) roster() []core.ConversationAgent {
	return participating(s.ActiveConversationAgents)
}

func (s *State) setAgentEnabled(id string, enabled bool) {
	for i := range s.ActiveConversationAgents {
		if s.ActiveConversationAgents[i].ID == id {
			s.ActiveConversationAgents[i].Enabled = enabled
		}
	}
}

func participating(agents []core.ConversationAgent) []core.ConversationAgent {
	out := make([]core.ConversationAgent, 0, len(agents))
	for _, a := range agents {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}
