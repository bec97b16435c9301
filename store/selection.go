package store

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chatmesh/core"
)

// SelectConversation makes id the active conversation and loads its messages
// and roster. An empty id deselects. Results of a selection that has been
// superseded by a newer one are discarded without touching state; in that
// case nil is returned even if the fetch failed.
func (s *Store) SelectConversation(ctx context.Context, id string) error {
	token := core.NewID()
	s.mutate(func(st *State) bool {
		st.RequestToken = token
		st.ActiveConversationID = id
		st.ActiveMessages = []core.Message{}
		st.ActiveConversationAgents = []core.ConversationAgent{}
		st.Loading.Messages = id != ""
		st.Loading.Agents = id != ""
		st.Errors.Messages = nil
		st.Errors.Agents = nil
		return true
	})

	if s.opts.ResetScopedState != nil {
		s.opts.ResetScopedState(id)
	}

	if id == "" {
		return nil
	}
	return s.load(ctx, id, token)
}

// RefreshActiveConversation re-fetches messages and roster of the active
// conversation under a fresh request token. The displayed data stays in place
// until the new results commit.
func (s *Store) RefreshActiveConversation(ctx context.Context) error {
	token := core.NewID()
	var id string
	s.mutate(func(st *State) bool {
		id = st.ActiveConversationID
		if id == "" {
			return false
		}
		st.RequestToken = token
		st.Loading.Messages = true
		st.Loading.Agents = true
		return true
	})
	if id == "" {
		return nil
	}
	return s.load(ctx, id, token)
}

func (s *Store) load(ctx context.Context, id, token string) error {
	svc := s.service()
	if svc == nil {
		s.mutate(func(st *State) bool {
			if st.RequestToken != token {
				return false
			}
			st.Loading.Messages = false
			st.Loading.Agents = false
			return true
		})
		return nil
	}

	var (
		msgs      []core.Message
		agents    []core.ConversationAgent
		msgErr    error
		agentsErr error
	)

	// Each fetch records its own failure; one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		msgs, msgErr = svc.ListMessages(ctx, id)
		return nil
	})
	g.Go(func() error {
		agents, agentsErr = svc.ListConversationAgents(ctx, id)
		return nil
	})
	_ = g.Wait()

	fetchErr := errors.Join(msgErr, agentsErr)

	committed := false
	s.mutate(func(st *State) bool {
		if st.RequestToken != token {
			return false
		}
		committed = true
		if msgErr != nil {
			st.Errors.Messages = core.NewErrorState(core.OperationLoad, msgErr, "")
		} else {
			st.ActiveMessages = trimMessages(core.CloneMessages(msgs), s.opts.MaxMessages)
			st.Errors.Messages = nil
		}
		if agentsErr != nil {
			st.Errors.Agents = core.NewErrorState(core.OperationLoad, agentsErr, "")
		} else {
			st.ActiveConversationAgents = core.CloneAgents(agents)
			if st.ActiveConversationAgents == nil {
				st.ActiveConversationAgents = []core.ConversationAgent{}
			}
			st.Errors.Agents = nil
		}
		st.Loading.Messages = false
		st.Loading.Agents = false
		return true
	})

	if !committed {
		outcome := "success"
		if fetchErr != nil {
			outcome = "error"
		}
		s.opts.Metrics.StaleDiscarded(outcome)
		s.opts.Logger.Debug("discarding superseded conversation load", "conversation_id", id, "outcome", outcome)
		return nil
	}

	if fetchErr != nil {
		s.opts.Logger.Warn("failed to load conversation", "conversation_id", id, "error", fetchErr)
	}
	return fetchErr
}

// trimMessages keeps the limit most recent messages; limit <= 0 keeps all.
func trimMessages(msgs []core.Message, limit int) []core.Message {
	if msgs == nil {
		return []core.Message{}
	}
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}
	return msgs[len(msgs)-limit:]
}
