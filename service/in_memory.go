package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// Dispatcher receives persisted user messages and runs the agent pipeline
// for them. Implementations report progress through a core.EventSource and
// should return once the work has been scheduled.
type Dispatcher interface {
	Dispatch(ctx context.Context, conversationID, messageID string) error
}

// Options configures an InMemoryService.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Dispatcher handles SendToAgents. May be attached later via AttachDispatcher.
	Dispatcher Dispatcher

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time

	// NewID generates entity ids. Defaults to core.NewID.
	NewID func() string
}

// InMemoryService is a volatile core.Service storing conversations, messages
// and participations in process local maps. It is safe for concurrent access.
// Every returned value is a copy; callers may mutate results freely.
type InMemoryService struct {
	opts Options

	mu            sync.RWMutex
	conversations map[string]core.Conversation
	messages      map[string][]core.Message
	agents        map[string]core.ConversationAgent
	dispatcher    Dispatcher
}

var _ core.Service = (*InMemoryService)(nil)

// NewInMemoryService constructs an empty in-memory service.
func NewInMemoryService(optFns ...func(o *Options)) *InMemoryService {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  core.NewID,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &InMemoryService{
		opts:          opts,
		conversations: make(map[string]core.Conversation),
		messages:      make(map[string][]core.Message),
		agents:        make(map[string]core.ConversationAgent),
		dispatcher:    opts.Dispatcher,
	}
}

// AttachDispatcher sets the pipeline used by SendToAgents.
func (s *InMemoryService) AttachDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// ListConversations returns all conversations, most recently updated first.
func (s *InMemoryService) ListConversations(ctx context.Context) ([]core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListMessages returns the messages of a conversation in creation order.
func (s *InMemoryService) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, conversationNotFound(conversationID)
	}
	out := core.CloneMessages(s.messages[conversationID])
	if out == nil {
		out = []core.Message{}
	}
	return out, nil
}

// ListConversationAgents returns the active participations of a conversation in turn order.
func (s *InMemoryService) ListConversationAgents(ctx context.Context, conversationID string) ([]core.ConversationAgent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, conversationNotFound(conversationID)
	}
	out := []core.ConversationAgent{}
	for _, a := range s.agents {
		if a.ConversationID == conversationID && a.IsActive {
			out = append(out, a)
		}
	}
	return chatmode.SortByTurnOrder(out), nil
}

// CreateConversation creates a manual-mode conversation.
func (s *InMemoryService) CreateConversation(ctx context.Context, title string) (core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return core.Conversation{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Conversation{}, core.NewValidationError("title", "must not be empty")
	}

	now := s.opts.Now()
	conv := core.Conversation{
		ID:        s.opts.NewID(),
		Title:     title,
		ChatMode:  core.ChatModeManual,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	s.opts.Logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// CreateMessage appends a message to a conversation. An empty role defaults to user.
func (s *InMemoryService) CreateMessage(ctx context.Context, msg core.NewMessage) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}
	if err := ValidateNewMessage(&msg); err != nil {
		return core.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return core.Message{}, conversationNotFound(msg.ConversationID)
	}

	now := s.opts.Now()
	out := core.Message{
		ID:             s.opts.NewID(),
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		AgentID:        msg.AgentID,
		CreatedAt:      now,
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], out)
	conv.UpdatedAt = now
	s.conversations[conv.ID] = conv
	return out, nil
}

// SendToAgents hands a persisted message to the attached dispatcher. Without a
// dispatcher the message is accepted and nothing runs.
func (s *InMemoryService) SendToAgents(ctx context.Context, conversationID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	_, ok := s.conversations[conversationID]
	found := false
	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			found = true
			break
		}
	}
	d := s.dispatcher
	s.mu.RUnlock()

	if !ok {
		return conversationNotFound(conversationID)
	}
	if !found {
		return fmt.Errorf("message %q: %w", messageID, core.ErrNotFound)
	}
	if d == nil {
		s.opts.Logger.Warn("no dispatcher attached; message not sent", "conversation_id", conversationID, "message_id", messageID)
		return nil
	}
	return d.Dispatch(ctx, conversationID, messageID)
}

// AddAgent creates a disabled participation at the end of the turn order.
func (s *InMemoryService) AddAgent(ctx context.Context, conversationID, agentID string) (core.ConversationAgent, error) {
	if err := ctx.Err(); err != nil {
		return core.ConversationAgent{}, err
	}
	if strings.TrimSpace(agentID) == "" {
		return core.ConversationAgent{}, core.NewValidationError("agent_id", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return core.ConversationAgent{}, conversationNotFound(conversationID)
	}

	count := 0
	for _, a := range s.agents {
		if a.ConversationID != conversationID {
			continue
		}
		if a.AgentID == agentID && a.IsActive {
			return core.ConversationAgent{}, core.NewValidationError("agent_id", "already in conversation")
		}
		count++
	}

	a := core.ConversationAgent{
		ID:             s.opts.NewID(),
		ConversationID: conversationID,
		AgentID:        agentID,
		DisplayOrder:   count,
		AddedAt:        s.opts.Now(),
		IsActive:       true,
		Color:          ColorFor(count),
	}
	s.agents[a.ID] = a
	return a, nil
}

// RemoveAgent soft-deletes the active participation of agentID.
func (s *InMemoryService) RemoveAgent(ctx context.Context, conversationID, agentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.agents {
		if a.ConversationID == conversationID && a.AgentID == agentID && a.IsActive {
			a.IsActive = false
			a.Enabled = false
			s.agents[id] = a
			return nil
		}
	}
	return fmt.Errorf("agent %q in conversation %q: %w", agentID, conversationID, core.ErrNotFound)
}

// UpdateConversationAgent applies a partial update to an active participation.
func (s *InMemoryService) UpdateConversationAgent(ctx context.Context, id string, update core.AgentUpdate) (core.ConversationAgent, error) {
	if err := ctx.Err(); err != nil {
		return core.ConversationAgent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok || !a.IsActive {
		return core.ConversationAgent{}, fmt.Errorf("conversation agent %q: %w", id, core.ErrNotFound)
	}
	if update.Enabled != nil {
		a.Enabled = *update.Enabled
	}
	s.agents[id] = a
	return a, nil
}

// UpdateConversation applies a partial update to a conversation.
func (s *InMemoryService) UpdateConversation(ctx context.Context, id string, update core.ConversationUpdate) (core.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return core.Conversation{}, err
	}
	if err := ValidateConversationUpdate(update); err != nil {
		return core.Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return core.Conversation{}, conversationNotFound(id)
	}
	if update.Title != nil {
		conv.Title = strings.TrimSpace(*update.Title)
	}
	if update.ChatMode != nil {
		conv.ChatMode = *update.ChatMode
	}
	conv.UpdatedAt = s.opts.Now()
	s.conversations[id] = conv
	return conv, nil
}
