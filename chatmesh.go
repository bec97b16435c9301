// Package chatmesh provides a high-level façade that wires the pieces of a
// multi-agent chat client together:
//  1. an events.Broker carrying agent updates
//  2. a core.Service backend (in-memory by default)
//  3. a dispatch.Dispatcher running agent turns for sent messages
//  4. a store.Store owning client state and applying chat mode policies
//
// Most applications create a ChatMesh via New, register agent definitions and
// then drive the conversation through Store().
package chatmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/dispatch"
	"github.com/hupe1980/chatmesh/events"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/service"
	"github.com/hupe1980/chatmesh/store"
)

// DispatcherAttacher is implemented by backends that hand sent messages to a dispatcher.
type DispatcherAttacher interface {
	AttachDispatcher(d service.Dispatcher)
}

// Options configures the ChatMesh instance.
type Options struct {
	// Service is the persistence backend. Defaults to service.InMemoryService.
	// Backends implementing DispatcherAttacher get the dispatcher attached.
	Service core.Service

	// Registry resolves chat mode handlers. Defaults to chatmode.DefaultRegistry().
	Registry *chatmode.Registry

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics is optional and shared by store and dispatcher.
	Metrics *metrics.Collector

	// MaxMessages caps the store's active message list. 0 means unlimited.
	MaxMessages int

	// MaxConcurrentTurns bounds concurrently generating agents. Defaults to 4.
	MaxConcurrentTurns int

	// TurnTimeout bounds a single agent turn. 0 means no timeout.
	TurnTimeout time.Duration

	// HistoryLimit caps the transcript passed to models. 0 means unlimited.
	HistoryLimit int

	// Stream requests streaming generation from models.
	Stream bool

	// ResetScopedState is forwarded to the store.
	ResetScopedState func(conversationID string)
}

// ChatMesh aggregates broker, backend, dispatcher and store.
type ChatMesh struct {
	opts       Options
	broker     *events.Broker
	svc        core.Service
	dispatcher *dispatch.Dispatcher
	store      *store.Store
}

// New creates a ChatMesh. Any unset backend is initialized in memory.
func New(optFns ...func(o *Options)) *ChatMesh {
	opts := Options{
		Registry:           chatmode.DefaultRegistry(),
		Logger:             logging.NoOpLogger{},
		MaxConcurrentTurns: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Service == nil {
		opts.Service = service.NewInMemoryService(func(o *service.Options) {
			o.Logger = opts.Logger
		})
	}

	broker := events.NewBroker(func(o *events.Options) {
		o.Logger = opts.Logger
	})

	d := dispatch.New(opts.Service, broker, func(o *dispatch.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.MaxConcurrent = opts.MaxConcurrentTurns
		o.TurnTimeout = opts.TurnTimeout
		o.HistoryLimit = opts.HistoryLimit
		o.Stream = opts.Stream
	})
	if a, ok := opts.Service.(DispatcherAttacher); ok {
		a.AttachDispatcher(d)
	} else {
		opts.Logger.Warn("backend cannot attach a dispatcher; agents will not reply")
	}

	s := store.New(func(o *store.Options) {
		o.Service = opts.Service
		o.Events = broker
		o.Registry = opts.Registry
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
		o.MaxMessages = opts.MaxMessages
		o.ResetScopedState = opts.ResetScopedState
	})

	return &ChatMesh{
		opts:       opts,
		broker:     broker,
		svc:        opts.Service,
		dispatcher: d,
		store:      s,
	}
}

// RegisterAgent makes an agent definition available to conversations.
func (m *ChatMesh) RegisterAgent(def dispatch.AgentDefinition) error {
	return m.dispatcher.Register(def)
}

// Agents returns the registered agent definitions sorted by id.
func (m *ChatMesh) Agents() []dispatch.AgentDefinition { return m.dispatcher.Agents() }

// Store returns the client store.
func (m *ChatMesh) Store() *store.Store { return m.store }

// Service returns the backend.
func (m *ChatMesh) Service() core.Service { return m.svc }

// Events returns the agent update broker.
func (m *ChatMesh) Events() *events.Broker { return m.broker }

// Start loads conversations and subscribes the store to agent updates, which
// drives round-robin progression. onUpdate is invoked after the store has
// processed each event and may be nil. The returned function unsubscribes.
func (m *ChatMesh) Start(ctx context.Context, onUpdate func(core.AgentUpdateEvent)) (func(), error) {
	if err := m.store.LoadConversations(ctx); err != nil {
		return nil, err
	}
	unsubscribe := m.store.SubscribeToAgentUpdates(ctx, onUpdate)
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	return unsubscribe, nil
}

// Wait blocks until every scheduled agent turn has finished.
func (m *ChatMesh) Wait() { m.dispatcher.Wait() }

// Close waits for in-flight turns, stops event delivery and closes the
// backend when it implements io.Closer.
func (m *ChatMesh) Close() error {
	m.dispatcher.Wait()
	m.broker.Close()

	var errs []error
	if c, ok := m.svc.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	return errors.Join(errs...)
}
