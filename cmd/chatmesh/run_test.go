package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
)

func TestRunDemo_RoundRobin(t *testing.T) {
	m, err := chatmesh.NewFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	var out bytes.Buffer
	err = runDemo(context.Background(), &out, m, core.ChatModeRoundRobin, runFlags{
		prompt:  "Hello team",
		turns:   3,
		timeout: 2 * time.Second,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"=== Hello team (round-robin) ===",
		"You: Hello team",
		"Critic: Critic: Hello team",
		"You: Please continue.",
		"Writer: Writer: Please continue.",
		"You: Please continue.",
		"Critic: Critic: Please continue.",
	}, lines)
}

func TestRunDemo_ManualWithoutEnabledAgents(t *testing.T) {
	m, err := chatmesh.NewFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	var out bytes.Buffer
	err = runDemo(context.Background(), &out, m, core.ChatModeManual, runFlags{prompt: "hi", turns: 1, timeout: time.Second})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no agent is enabled")
}

func TestModesCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newModesCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "manual\nround-robin\n", out.String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	assert.IsType(t, &logging.ZerologAdapter{}, newLogger(config.LogConfig{Level: "debug", Format: "console"}, &buf))
	assert.IsType(t, &logging.ChatMeshLogger{}, newLogger(config.LogConfig{Level: "info", Format: "json"}, &buf))
}
