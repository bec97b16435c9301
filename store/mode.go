package store

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
)

// GetActiveChatMode returns the chat mode of the active conversation,
// defaulting to manual.
func (s *Store) GetActiveChatMode() core.ChatMode {
	var mode core.ChatMode
	s.read(func(st *State) {
		mode = st.modeOf(st.ActiveConversationID)
	})
	return mode
}

// SetChatMode switches the active conversation to mode. Switching into
// round-robin immediately repairs any multi-enabled roster. Without an active
// conversation or service this is a no-op.
func (s *Store) SetChatMode(ctx context.Context, mode core.ChatMode) error {
	svc := s.service()

	var id, token string
	s.read(func(st *State) {
		id = st.ActiveConversationID
		token = st.RequestToken
	})
	if svc == nil || id == "" {
		return nil
	}

	if _, err := s.opts.Registry.NewHandler(mode); err != nil {
		return err
	}

	updated, err := svc.UpdateConversation(ctx, id, core.ConversationUpdate{ChatMode: &mode})
	if err != nil {
		s.setError(core.DomainConversations, core.OperationSave, err, "")
		return fmt.Errorf("set chat mode: %w", err)
	}

	current := false
	s.mutate(func(st *State) bool {
		found := false
		for i := range st.Conversations {
			if st.Conversations[i].ID != id {
				continue
			}
			found = true
			c := st.Conversations[i]
			if updated.ID == id {
				c = updated
			}
			c.ChatMode = mode
			st.Conversations[i] = c
		}
		// Selected without a prior list load.
		if !found && updated.ID == id {
			updated.ChatMode = mode
			st.Conversations = append([]core.Conversation{updated}, st.Conversations...)
		}
		st.Errors.Conversations = nil
		current = st.ActiveConversationID == id && st.RequestToken == token
		return true
	})

	s.opts.Logger.Info("chat mode changed", "conversation_id", id, "mode", mode)

	if mode == core.ChatModeRoundRobin && current {
		return s.EnforceRoundRobinInvariant(ctx)
	}
	return nil
}

// EnforceRoundRobinInvariant keeps only the first enabled agent by turn order
// and disables every other enabled one. Running it on a settled roster issues
// no calls.
func (s *Store) EnforceRoundRobinInvariant(ctx context.Context) error {
	var enabled []core.ConversationAgent
	s.read(func(st *State) {
		enabled = EnabledAgents(*st)
	})
	if len(enabled) < 2 {
		return nil
	}

	ordered := chatmode.SortByTurnOrder(enabled)
	intent := chatmode.EmptyIntent()
	for _, a := range ordered[1:] {
		intent.ToDisable = append(intent.ToDisable, a.ID)
	}

	s.opts.Logger.Info("enforcing single enabled agent", "keep", ordered[0].ID, "disable", intent.ToDisable)
	return s.ProcessAgentIntent(ctx, intent)
}
