package chatmesh

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/dispatch"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/model/anthropic"
	"github.com/hupe1980/chatmesh/model/openai"
	"github.com/hupe1980/chatmesh/service/sqlite"
)

// NewFromConfig builds a ChatMesh from application configuration: it opens the
// configured backend, creates one model per agent and registers the agents.
// optFns run after the configuration has been applied.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*ChatMesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Applied once up front so the backend logs through the caller's logger.
	probe := Options{}
	for _, fn := range optFns {
		fn(&probe)
	}

	var backend core.Service
	if cfg.Backend.Type == config.BackendSQLite {
		db, err := sqlite.Open(cfg.Backend.Path, func(o *sqlite.Options) {
			o.Logger = probe.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("open backend: %w", err)
		}
		backend = db
	}

	fns := append([]func(o *Options){func(o *Options) {
		o.Service = backend
		o.MaxMessages = cfg.Store.MaxMessages
	}}, optFns...)
	m := New(fns...)

	for _, a := range cfg.Agents {
		def := dispatch.AgentDefinition{
			ID:          a.ID,
			Name:        a.Name,
			Instruction: a.Instruction,
			Model:       NewModel(cfg.Provider, a.Name),
		}
		if err := m.RegisterAgent(def); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

// NewModel creates the model.Model configured by p. name labels mock models.
func NewModel(p config.ProviderConfig, name string) model.Model {
	switch p.Name {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if p.Model != "" {
				o.Model = p.Model
			}
			o.APIKey = p.APIKey
		})
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if p.Model != "" {
				o.Model = anthropicsdk.Model(p.Model)
			}
			o.APIKey = p.APIKey
		})
	default:
		return model.NewMockModel(name, config.ProviderMock)
	}
}
