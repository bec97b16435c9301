// Package events provides an in-process publish/subscribe broker for
// core.AgentUpdateEvent values. It is the default core.EventSource used by
// the chatmesh façade: the dispatcher publishes, the conversation store
// subscribes.
package events

import (
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

// Options configures a Broker.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Broker fans AgentUpdateEvents out to subscribers.
//
// Contract:
//   - Publish never blocks on slow subscribers; every subscriber owns an
//     unbounded queue drained by its own goroutine
//   - Each subscriber receives events in publish order
//   - Callbacks run outside the broker lock and may unsubscribe themselves
//   - After Close, Publish is a no-op and SubscribeToAgentUpdates returns a no-op disposer
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
	logger logging.Logger
}

// NewBroker creates an empty broker.
func NewBroker(optFns ...func(o *Options)) *Broker {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Broker{subs: make(map[*subscription]struct{}), logger: logging.OrNoOp(opts.Logger)}
}

// Publish delivers ev to every current subscriber.
func (b *Broker) Publish(ev core.AgentUpdateEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.enqueue(ev)
	}
	b.logger.Debug("agent update published",
		"conversation_id", ev.ConversationID,
		"conversation_agent_id", ev.ConversationAgentID,
		"status", ev.Status,
		"subscribers", len(b.subs))
}

// SubscribeToAgentUpdates implements core.EventSource.
func (b *Broker) SubscribeToAgentUpdates(fn func(core.AgentUpdateEvent)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	s := newSubscription(fn)
	b.subs[s] = struct{}{}
	go s.run()
	return func() {
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		s.stop()
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops every subscription. Queued but undelivered events are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.stop()
		delete(b.subs, s)
	}
}

type subscription struct {
	fn     func(core.AgentUpdateEvent)
	mu     sync.Mutex
	queue  []core.AgentUpdateEvent
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(fn func(core.AgentUpdateEvent)) *subscription {
	return &subscription{fn: fn, signal: make(chan struct{}, 1), done: make(chan struct{})}
}

func (s *subscription) enqueue(ev core.AgentUpdateEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() { s.once.Do(func() { close(s.done) }) }

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, ev := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(ev)
		}
	}
}
