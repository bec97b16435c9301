package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

const (
	intentFailurePrefix    = "failed to apply chat mode changes: "
	addedButFailedPrefix   = "agent added but chat mode processing failed: "
	removedButFailedPrefix = "agent removed but chat mode processing failed: "
)

// ProcessAgentIntent applies intent through the service: every disable in
// order, then every enable in order, one call at a time. Each successful call
// is reflected in the roster immediately. The first failure aborts the
// remaining calls, is recorded in the agents error slot and returned; changes
// already applied are kept.
func (s *Store) ProcessAgentIntent(ctx context.Context, intent chatmode.Intent) error {
	svc := s.service()
	if svc == nil || intent.IsEmpty() {
		return nil
	}

	if err := s.applyIntent(ctx, svc, s.GetActiveChatMode(), intent); err != nil {
		err = fmt.Errorf("%s%w", intentFailurePrefix, err)
		s.setError(core.DomainAgents, core.OperationSave, err, "")
		return err
	}

	s.mutate(func(st *State) bool {
		if st.Errors.Agents == nil {
			return false
		}
		st.Errors.Agents = nil
		return true
	})
	return nil
}

// applyIntent performs the service calls of intent without touching error
// slots. mode is the chat mode of the conversation the intent belongs to.
func (s *Store) applyIntent(ctx context.Context, svc core.Service, mode core.ChatMode, intent chatmode.Intent) error {
	if intent.IsEmpty() {
		return nil
	}

	start := time.Now()
	err := func() error {
		for _, id := range intent.ToDisable {
			if err := s.setAgentEnabled(ctx, svc, id, false); err != nil {
				return err
			}
		}
		for _, id := range intent.ToEnable {
			if err := s.setAgentEnabled(ctx, svc, id, true); err != nil {
				return err
			}
		}
		return nil
	}()

	if il, ok := s.opts.Logger.(logging.IntentLogger); ok {
		il.LogIntent(string(mode), intent.ToEnable, intent.ToDisable, time.Since(start), err)
	} else {
		s.opts.Logger.Debug("applied chat mode intent",
			"chat_mode", mode,
			"to_enable", intent.ToEnable,
			"to_disable", intent.ToDisable,
			"duration", time.Since(start),
			"error", err,
		)
	}
	return err
}

func (s *Store) setAgentEnabled(ctx context.Context, svc core.Service, id string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}

	_, err := svc.UpdateConversationAgent(ctx, id, core.AgentUpdate{Enabled: &enabled})
	s.opts.Metrics.IntentCall(action, err)
	if err != nil {
		return fmt.Errorf("%s agent %s: %w", action, id, err)
	}

	s.mutate(func(st *State) bool {
		st.setAgentEnabled(id, enabled)
		return true
	})
	return nil
}
