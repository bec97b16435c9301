package store

import (
	"context"
	"sync"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
)

// Options configures a Store.
type Options struct {
	// Service is the persistence backend. It may be attached later via Initialize.
	Service core.Service

	// Events delivers agent updates for SubscribeToAgentUpdates. Nil disables event-driven progression.
	Events core.EventSource

	// Registry resolves chat mode handlers. Defaults to chatmode.DefaultRegistry().
	Registry *chatmode.Registry

	// Logger for store operations. Defaults to logging.NoOpLogger.
	Logger logging.Logger

	// Metrics is optional.
	Metrics *metrics.Collector

	// MaxMessages trims the active message list to the most recent entries. 0 means unlimited.
	MaxMessages int

	// ResetScopedState is invoked on every selection with the newly selected
	// conversation id (empty for none) to drop conversation-scoped UI state.
	ResetScopedState func(conversationID string)
}

// Store owns conversation state and applies chat mode policies through the
// configured service. A Store is safe for concurrent use.
type Store struct {
	opts Options

	mu        sync.Mutex
	svc       core.Service
	state     State
	listeners map[int]func(State)
	nextID    int
}

// New creates a Store.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		Registry: chatmode.DefaultRegistry(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = chatmode.DefaultRegistry()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Store{
		opts: opts,
		svc:  opts.Service,
		state: State{
			Conversations:            []core.Conversation{},
			ActiveMessages:           []core.Message{},
			ActiveConversationAgents: []core.ConversationAgent{},
		},
		listeners: make(map[int]func(State)),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Listeners run outside the store lock on the goroutine that made the change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ClearError resets the error slot of a domain.
func (s *Store) ClearError(d core.Domain) {
	s.mutate(func(st *State) bool {
		p := st.Errors.slot(d)
		if p == nil || *p == nil {
			return false
		}
		*p = nil
		return true
	})
}

// mutate applies fn under the lock and notifies listeners when fn reports a change.
func (s *Store) mutate(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state.Clone()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap.Clone())
	}
}

func (s *Store) read(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *Store) service() core.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc
}

func (s *Store) setError(d core.Domain, op core.Operation, err error, message string) {
	es := core.NewErrorState(op, err, message)
	s.mutate(func(st *State) bool {
		if p := st.Errors.slot(d); p != nil {
			*p = es
		}
		return true
	})
}

func (s *Store) handlerFor(mode core.ChatMode) (chatmode.Handler, error) {
	return s.opts.Registry.NewHandler(mode.OrDefault())
}

// Initialize attaches svc when no service was configured and loads the conversation list.
func (s *Store) Initialize(ctx context.Context, svc core.Service) error {
	s.mu.Lock()
	if s.svc == nil {
		s.svc = svc
	}
	s.mu.Unlock()
	return s.LoadConversations(ctx)
}
