package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
)

// AgentDefinition is an agent configuration that can join conversations.
// ID is the value passed as agentID to core.Service.AddAgent.
type AgentDefinition struct {
	ID   string
	Name string

	// Instruction is rendered with text/template. Available keys:
	// agent_name, conversation_id, participants (names of the enabled agents).
	Instruction string

	Model model.Model
}

func (d AgentDefinition) validate() error {
	switch {
	case d.ID == "":
		return core.NewValidationError("id", "must not be empty")
	case d.Name == "":
		return core.NewValidationError("name", "must not be empty")
	case d.Model == nil:
		return core.NewValidationError("model", "must not be nil")
	}
	return nil
}

// ErrUnknownAgent is reported when a participation references an undefined agent.
var ErrUnknownAgent = errors.New("unknown agent")

type catalog struct {
	mu     sync.RWMutex
	agents map[string]AgentDefinition
}

func newCatalog() *catalog {
	return &catalog{agents: make(map[string]AgentDefinition)}
}

func (c *catalog) register(def AgentDefinition) error {
	if err := def.validate(); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents[def.ID] = def
	return nil
}

func (c *catalog) get(id string) (AgentDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.agents[id]
	if !ok {
		return AgentDefinition{}, fmt.Errorf("%w %q", ErrUnknownAgent, id)
	}
	return def, nil
}

func (c *catalog) list() []AgentDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AgentDefinition, 0, len(c.agents))
	for _, def := range c.agents {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
