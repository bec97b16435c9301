package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/chatmesh/chatmode"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/util"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/model"
)

// Publisher receives agent updates. *events.Broker implements it.
type Publisher interface {
	Publish(ev core.AgentUpdateEvent)
}

// Options configures a Dispatcher.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics is optional.
	Metrics *metrics.Collector

	// MaxConcurrent bounds the number of turns generating at once. Defaults to 4.
	MaxConcurrent int

	// HistoryLimit caps the transcript sent to a model to the most recent messages. 0 means unlimited.
	HistoryLimit int

	// TurnTimeout bounds a single turn. 0 means no timeout.
	TurnTimeout time.Duration

	// Stream requests streaming generation from models that support it.
	Stream bool
}

// Dispatcher runs agent turns for persisted user messages.
type Dispatcher struct {
	svc    core.Service
	events Publisher
	opts   Options
	agents *catalog
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// New creates a Dispatcher that reads and writes through svc and reports progress to events.
func New(svc core.Service, events Publisher, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		MaxConcurrent: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}

	return &Dispatcher{
		svc:    svc,
		events: events,
		opts:   opts,
		agents: newCatalog(),
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

// Register adds or replaces an agent definition.
func (d *Dispatcher) Register(def AgentDefinition) error {
	return d.agents.register(def)
}

// Agents returns the registered definitions sorted by id.
func (d *Dispatcher) Agents() []AgentDefinition {
	return d.agents.list()
}

// Wait blocks until every scheduled turn has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch schedules one turn per enabled participation of the conversation,
// in turn order. It returns once the turns are scheduled; turn outcomes are
// published as events.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID, messageID string) error {
	roster, err := d.svc.ListConversationAgents(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("dispatch: list agents: %w", err)
	}
	history, err := d.svc.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("dispatch: list messages: %w", err)
	}

	enabled := make([]core.ConversationAgent, 0, len(roster))
	for _, a := range roster {
		if a.IsActive && a.Enabled {
			enabled = append(enabled, a)
		}
	}
	enabled = chatmode.SortByTurnOrder(enabled)

	if len(enabled) == 0 {
		d.opts.Logger.Info("no enabled agents; nothing dispatched", "conversation_id", conversationID, "message_id", messageID)
		return nil
	}

	names := d.participantNames(roster)
	participants := make([]string, 0, len(enabled))
	for _, a := range enabled {
		participants = append(participants, names[a.ID])
	}

	// Turns outlive the request that triggered them.
	turnCtx := context.WithoutCancel(ctx)

	for _, a := range enabled {
		t := turn{
			conversationID: conversationID,
			agent:          a,
			history:        history,
			names:          names,
			participants:   participants,
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(turnCtx, t)
		}()
	}
	return nil
}

type turn struct {
	conversationID string
	agent          core.ConversationAgent
	history        []core.Message
	names          map[string]string
	participants   []string
}

func (d *Dispatcher) run(ctx context.Context, t turn) {
	name := t.names[t.agent.ID]
	base := core.AgentUpdateEvent{
		ConversationID:      t.conversationID,
		ConversationAgentID: t.agent.ID,
		AgentName:           name,
	}

	def, err := d.agents.get(t.agent.AgentID)
	if err != nil {
		d.fail(base, "", 0, err)
		return
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.fail(base, def.Model.Info().Provider, 0, err)
		return
	}
	defer d.sem.Release(1)

	thinking := base
	thinking.Status = core.AgentStatusThinking
	d.publish(thinking)

	if d.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.TurnTimeout)
		defer cancel()
	}

	start := time.Now()
	provider := def.Model.Info().Provider

	instructions, err := util.RenderTemplate(def.Instruction, map[string]any{
		"agent_name":      def.Name,
		"conversation_id": t.conversationID,
		"participants":    t.participants,
	})
	if err != nil {
		d.fail(base, provider, time.Since(start), err)
		return
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     transcript(t.history, t.agent.ID, t.names, d.opts.HistoryLimit),
		Stream:       d.opts.Stream,
	}
	out, errCh := def.Model.Generate(ctx, req)
	resp, err := model.Collect(ctx, out, errCh)
	if err != nil {
		d.fail(base, provider, time.Since(start), err)
		return
	}

	msg, err := d.svc.CreateMessage(ctx, core.NewMessage{
		ConversationID: t.conversationID,
		Content:        resp.Text,
		Role:           core.RoleAssistant,
		AgentID:        t.agent.ID,
	})
	if err != nil {
		d.fail(base, provider, time.Since(start), fmt.Errorf("persist reply: %w", err))
		return
	}

	dur := time.Since(start)
	d.opts.Metrics.DispatchTurn(provider, string(core.AgentStatusComplete), dur)
	d.logTurn(name, provider, dur, nil)

	complete := base
	complete.Status = core.AgentStatusComplete
	complete.MessageID = msg.ID
	d.publish(complete)
}

func (d *Dispatcher) fail(base core.AgentUpdateEvent, provider string, dur time.Duration, err error) {
	d.opts.Metrics.DispatchTurn(provider, string(core.AgentStatusError), dur)
	d.logTurn(base.AgentName, provider, dur, err)

	ev := base
	ev.Status = core.AgentStatusError
	ev.Error = err.Error()
	ev.ErrorType = errorType(err)
	ev.Retryable = core.IsRetryable(err) && !errors.Is(err, ErrUnknownAgent)
	d.publish(ev)
}

func (d *Dispatcher) publish(ev core.AgentUpdateEvent) {
	if d.events != nil {
		d.events.Publish(ev)
	}
}

func (d *Dispatcher) logTurn(agentName, provider string, dur time.Duration, err error) {
	if dl, ok := d.opts.Logger.(logging.DispatchLogger); ok {
		dl.LogDispatch(agentName, provider, dur, err)
		return
	}
	if err != nil {
		d.opts.Logger.Error("agent turn failed", "agent_name", agentName, "provider", provider, "duration", dur, "error", err)
		return
	}
	d.opts.Logger.Info("agent turn completed", "agent_name", agentName, "provider", provider, "duration", dur)
}

// participantNames maps participation ids to display names, falling back to the agent id.
func (d *Dispatcher) participantNames(roster []core.ConversationAgent) map[string]string {
	names := make(map[string]string, len(roster))
	for _, a := range roster {
		if def, err := d.agents.get(a.AgentID); err == nil {
			names[a.ID] = def.Name
			continue
		}
		names[a.ID] = a.AgentID
	}
	return names
}
