package store

import (
	"context"

	"github.com/hupe1980/chatmesh/core"
)

// HandleConversationProgression hands the turn to the next agent of a
// round-robin conversation. Other modes and an empty selection are no-ops.
func (s *Store) HandleConversationProgression(ctx context.Context) error {
	var (
		id     string
		mode   core.ChatMode
		roster []core.ConversationAgent
	)
	s.read(func(st *State) {
		id = st.ActiveConversationID
		mode = st.modeOf(id)
		roster = st.roster()
	})
	if id == "" || mode != core.ChatModeRoundRobin {
		return nil
	}

	handler, err := s.handlerFor(mode)
	if err != nil {
		return err
	}

	intent := handler.HandleConversationProgression(roster)
	s.opts.Metrics.Progression()
	return s.ProcessAgentIntent(ctx, intent)
}

// SubscribeToAgentUpdates registers with the configured event source. A
// complete event for the active conversation advances the turn before the
// event is forwarded to cb. Returns nil when no event source is configured.
func (s *Store) SubscribeToAgentUpdates(ctx context.Context, cb func(core.AgentUpdateEvent)) (unsubscribe func()) {
	if s.opts.Events == nil {
		return nil
	}

	return s.opts.Events.SubscribeToAgentUpdates(func(ev core.AgentUpdateEvent) {
		if ev.Status == core.AgentStatusComplete {
			var active string
			s.read(func(st *State) {
				active = st.ActiveConversationID
			})
			if active != "" && ev.ConversationID == active {
				if err := s.HandleConversationProgression(ctx); err != nil {
					s.opts.Logger.Warn("progression failed", "conversation_id", active, "error", err)
				}
			}
		}
		if cb != nil {
			cb(ev)
		}
	})
}
