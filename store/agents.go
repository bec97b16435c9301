package store

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
)

// AddAgent adds agentID to a conversation and lets the conversation's chat
// mode react to the newcomer. When the addition succeeds but the follow-up
// policy fails, the new participation is returned together with an error and
// the addition is kept. Without a service it returns the zero value and nil.
func (s *Store) AddAgent(ctx context.Context, conversationID, agentID string) (core.ConversationAgent, error) {
	svc := s.service()
	if svc == nil {
		s.opts.Logger.Debug("add agent skipped; no service attached")
		return core.ConversationAgent{}, nil
	}

	added, err := svc.AddAgent(ctx, conversationID, agentID)
	if err != nil {
		s.setError(core.DomainAgents, core.OperationSave, err, "")
		return core.ConversationAgent{}, fmt.Errorf("add agent: %w", err)
	}

	var (
		mode   core.ChatMode
		roster []core.ConversationAgent
		loaded bool
	)
	s.mutate(func(st *State) bool {
		mode = st.modeOf(conversationID)
		if st.ActiveConversationID != conversationID {
			return false
		}
		// A roster that is still loading or failed to load is not the
		// backend's view; the handler must not decide on it.
		loaded = !st.Loading.Agents && st.Errors.Agents == nil
		st.ActiveConversationAgents = upsertAgent(st.ActiveConversationAgents, added)
		st.Errors.Agents = nil
		roster = st.roster()
		return true
	})

	if !loaded {
		roster, err = svc.ListConversationAgents(ctx, conversationID)
		if err != nil {
			return added, s.addedButFailed(err)
		}
		roster = participating(roster)
	}

	handler, err := s.handlerFor(mode)
	if err != nil {
		return added, s.addedButFailed(err)
	}

	// The handler decides even when the newcomer already looks settled.
	intent := handler.HandleAgentAdded(roster, added.ID)
	if err := s.applyIntent(ctx, svc, mode, intent); err != nil {
		return added, s.addedButFailed(err)
	}
	return added, nil
}

func (s *Store) addedButFailed(err error) error {
	err = fmt.Errorf("%s%w", addedButFailedPrefix, err)
	s.setError(core.DomainAgents, core.OperationSave, err, "")
	s.opts.Logger.Warn("chat mode processing after add failed", "error", err)
	return err
}

// ToggleAgentEnabled flips the enabled flag of a participation in the active
// conversation. Manual conversations get a single direct update; other modes
// route the flip through their handler. Unknown ids are ignored.
func (s *Store) ToggleAgentEnabled(ctx context.Context, id string) error {
	svc := s.service()
	if svc == nil {
		return nil
	}

	var (
		mode   core.ChatMode
		roster []core.ConversationAgent
		target core.ConversationAgent
		found  bool
	)
	s.read(func(st *State) {
		mode = st.modeOf(st.ActiveConversationID)
		roster = st.roster()
		for _, a := range st.ActiveConversationAgents {
			if a.ID == id {
				target, found = a, true
				break
			}
		}
	})
	if !found {
		return nil
	}

	if mode == core.ChatModeManual {
		if err := s.setAgentEnabled(ctx, svc, id, !target.Enabled); err != nil {
			s.setError(core.DomainAgents, core.OperationSave, err, "")
			return err
		}
		s.ClearError(core.DomainAgents)
		return nil
	}

	handler, err := s.handlerFor(mode)
	if err != nil {
		s.setError(core.DomainAgents, core.OperationSave, err, "")
		return err
	}
	return s.ProcessAgentIntent(ctx, handler.HandleAgentToggle(roster, id))
}

// RemoveAgent removes agentID from a conversation. When the conversation is
// still the active selection afterwards, the chat mode may re-elect a turn
// holder and the conversation is refreshed. Refresh failures are logged only.
func (s *Store) RemoveAgent(ctx context.Context, conversationID, agentID string) error {
	svc := s.service()
	if svc == nil {
		s.opts.Logger.Debug("remove agent skipped; no service attached")
		return nil
	}

	var (
		token  string
		mode   core.ChatMode
		before []core.ConversationAgent
	)
	s.read(func(st *State) {
		token = st.RequestToken
		mode = st.modeOf(conversationID)
		if st.ActiveConversationID == conversationID {
			before = st.roster()
		}
	})

	if err := svc.RemoveAgent(ctx, conversationID, agentID); err != nil {
		s.setError(core.DomainAgents, core.OperationSave, err, "")
		return fmt.Errorf("remove agent: %w", err)
	}

	current := false
	s.mutate(func(st *State) bool {
		current = st.ActiveConversationID == conversationID && st.RequestToken == token
		if !current || st.Errors.Agents == nil {
			return false
		}
		st.Errors.Agents = nil
		return true
	})
	if !current {
		s.opts.Logger.Debug("skipping refresh after remove; selection changed", "conversation_id", conversationID)
		return nil
	}

	s.reelectAfterRemoval(ctx, svc, mode, before, agentID)

	if err := s.RefreshActiveConversation(ctx); err != nil {
		s.opts.Logger.Warn("refresh after agent removal failed", "conversation_id", conversationID, "error", err)
	}
	return nil
}

func (s *Store) reelectAfterRemoval(ctx context.Context, svc core.Service, mode core.ChatMode, before []core.ConversationAgent, agentID string) {
	handler, err := s.handlerFor(mode)
	if err != nil {
		return
	}
	rh, ok := handler.(chatmode.RemovalHandler)
	if !ok {
		return
	}

	removedID := ""
	for _, a := range before {
		if a.AgentID == agentID {
			removedID = a.ID
			break
		}
	}
	if removedID == "" {
		return
	}

	if err := s.applyIntent(ctx, svc, mode, rh.HandleAgentRemoved(before, removedID)); err != nil {
		err = fmt.Errorf("%s%w", removedButFailedPrefix, err)
		s.setError(core.DomainAgents, core.OperationSave, err, "")
		s.opts.Logger.Warn("chat mode processing after remove failed", "error", err)
	}
}

func upsertAgent(agents []core.ConversationAgent, a core.ConversationAgent) []core.ConversationAgent {
	out := core.CloneAgents(agents)
	for i := range out {
		if out[i].ID == a.ID {
			out[i] = a
			return out
		}
	}
	return append(out, a)
}
