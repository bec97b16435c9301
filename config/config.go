// Package config loads chatmesh application settings from defaults, an
// optional YAML file and CHATMESH_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/chatmesh/core"
)

// Config holds the complete application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Provider ProviderConfig `mapstructure:"provider"`
	ChatMode string         `mapstructure:"chat_mode"`
	Agents   []AgentConfig  `mapstructure:"agents"`
}

// LogConfig selects the log level and output format (console, json or text).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig tunes the client store.
type StoreConfig struct {
	MaxMessages int `mapstructure:"max_messages"`
}

// BackendConfig selects the persistence backend.
type BackendConfig struct {
	Type string `mapstructure:"type"` // memory or sqlite
	Path string `mapstructure:"path"`
}

// ProviderConfig selects the model provider used by every agent.
type ProviderConfig struct {
	Name   string `mapstructure:"name"` // mock, openai or anthropic
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

// AgentConfig defines one agent that can join conversations.
type AgentConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Instruction string `mapstructure:"instruction"`
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "console"},
		Store:    StoreConfig{MaxMessages: 500},
		Backend:  BackendConfig{Type: BackendMemory, Path: "chatmesh.db"},
		Provider: ProviderConfig{Name: ProviderMock},
		ChatMode: string(core.ChatModeRoundRobin),
		Agents: []AgentConfig{
			{ID: "writer", Name: "Writer", Instruction: "You are {{.agent_name}}. Draft short answers."},
			{ID: "critic", Name: "Critic", Instruction: `You are {{.agent_name}}. Review what {{join ", " (others .agent_name .participants)}} wrote.`},
		},
	}
}

// Load reads configuration. An empty path searches ./chatmesh.yaml; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("chatmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated fields and agent definitions.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendMemory:
	case BackendSQLite:
		if c.Backend.Path == "" {
			return core.NewValidationError("backend.path", "required for sqlite")
		}
	default:
		return core.NewValidationError("backend.type", fmt.Sprintf("unknown backend %q", c.Backend.Type))
	}

	switch c.Provider.Name {
	case ProviderMock, ProviderOpenAI, ProviderAnthropic:
	default:
		return core.NewValidationError("provider.name", fmt.Sprintf("unknown provider %q", c.Provider.Name))
	}

	switch core.ChatMode(c.ChatMode) {
	case core.ChatModeManual, core.ChatModeRoundRobin:
	default:
		return core.NewValidationError("chat_mode", fmt.Sprintf("unknown chat mode %q", c.ChatMode))
	}

	if c.Store.MaxMessages < 0 {
		return core.NewValidationError("store.max_messages", "must not be negative")
	}

	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" || a.Name == "" {
			return core.NewValidationError(field, "id and name are required")
		}
		if seen[a.ID] {
			return core.NewValidationError(field, fmt.Sprintf("duplicate id %q", a.ID))
		}
		seen[a.ID] = true
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("store.max_messages", d.Store.MaxMessages)
	v.SetDefault("backend.type", d.Backend.Type)
	v.SetDefault("backend.path", d.Backend.Path)
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("chat_mode", d.ChatMode)

	agents := make([]map[string]any, 0, len(d.Agents))
	for _, a := range d.Agents {
		agents = append(agents, map[string]any{"id": a.ID, "name": a.Name, "instruction": a.Instruction})
	}
	v.SetDefault("agents", agents)
}
