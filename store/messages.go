package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/chatmesh/core"
)

// LoadConversations fetches the conversation list.
func (s *Store) LoadConversations(ctx context.Context) error {
	svc := s.service()
	if svc == nil {
		return nil
	}

	s.mutate(func(st *State) bool {
		st.Loading.Conversations = true
		return true
	})

	convs, err := svc.ListConversations(ctx)

	s.mutate(func(st *State) bool {
		st.Loading.Conversations = false
		if err != nil {
			st.Errors.Conversations = core.NewErrorState(core.OperationLoad, err, "")
			return true
		}
		st.Conversations = make([]core.Conversation, len(convs))
		copy(st.Conversations, convs)
		st.Errors.Conversations = nil
		return true
	})

	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	return nil
}

// CreateConversationAndSelect creates a conversation, puts it at the top of
// the list and selects it.
func (s *Store) CreateConversationAndSelect(ctx context.Context, title string) (core.Conversation, error) {
	svc := s.service()
	if svc == nil {
		s.opts.Logger.Debug("create conversation skipped; no service attached")
		return core.Conversation{}, nil
	}

	conv, err := svc.CreateConversation(ctx, title)
	if err != nil {
		s.setError(core.DomainConversations, core.OperationSave, err, "")
		return core.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	s.mutate(func(st *State) bool {
		convs := make([]core.Conversation, 0, len(st.Conversations)+1)
		convs = append(convs, conv)
		for _, c := range st.Conversations {
			if c.ID != conv.ID {
				convs = append(convs, c)
			}
		}
		st.Conversations = convs
		st.Errors.Conversations = nil
		return true
	})

	return conv, s.SelectConversation(ctx, conv.ID)
}

// SendUserMessage persists a user message in the active conversation and
// hands it to the agent pipeline. A failed hand-off is recorded in the
// sending error slot; the persisted message is kept. Without a service or an
// active conversation nothing is sent and the zero Message is returned.
func (s *Store) SendUserMessage(ctx context.Context, content string) (core.Message, error) {
	svc := s.service()
	var id string
	s.read(func(st *State) {
		id = st.ActiveConversationID
	})
	if svc == nil || id == "" {
		s.opts.Logger.Debug("send skipped; no service or no active conversation")
		return core.Message{}, nil
	}

	if strings.TrimSpace(content) == "" {
		err := core.NewValidationError("content", "must not be empty")
		s.setError(core.DomainSending, core.OperationSave, err, "")
		return core.Message{}, err
	}

	s.mutate(func(st *State) bool {
		st.Loading.Sending = true
		return true
	})

	msg, err := svc.CreateMessage(ctx, core.NewMessage{
		ConversationID: id,
		Content:        content,
		Role:           core.RoleUser,
	})
	if err != nil {
		s.finishSending(err)
		return core.Message{}, fmt.Errorf("create message: %w", err)
	}

	s.mutate(func(st *State) bool {
		if st.ActiveConversationID != id {
			return false
		}
		for _, m := range st.ActiveMessages {
			if m.ID == msg.ID {
				return false
			}
		}
		st.ActiveMessages = trimMessages(append(core.CloneMessages(st.ActiveMessages), msg), s.opts.MaxMessages)
		return true
	})

	if err := svc.SendToAgents(ctx, id, msg.ID); err != nil {
		s.finishSending(err)
		return msg, fmt.Errorf("send to agents: %w", err)
	}

	s.finishSending(nil)
	return msg, nil
}

func (s *Store) finishSending(err error) {
	var es *core.ErrorState
	if err != nil {
		es = core.NewErrorState(core.OperationSave, err, "")
	}
	s.mutate(func(st *State) bool {
		st.Loading.Sending = false
		st.Errors.Sending = es
		return true
	})
}
