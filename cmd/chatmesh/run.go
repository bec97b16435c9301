package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/store"
)

type runFlags struct {
	prompt  string
	turns   int
	mode    string
	timeout time.Duration
}

func newRunCmd() *cobra.Command {
	f := runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted conversation with the configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if f.mode != "" {
				cfg.ChatMode = f.mode
			}
			if verbose {
				cfg.Log.Level = "debug"
			}

			logger := newLogger(cfg.Log, cmd.ErrOrStderr())
			m, err := chatmesh.NewFromConfig(cfg, func(o *chatmesh.Options) {
				o.Logger = logger
				o.Metrics = metrics.New(prometheus.NewRegistry())
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := m.Close(); err != nil {
					logger.Error("close failed", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return runDemo(ctx, cmd.OutOrStdout(), m, core.ChatMode(cfg.ChatMode), f)
		},
	}

	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "Introduce yourselves in one sentence.", "opening user message")
	cmd.Flags().IntVarP(&f.turns, "turns", "n", 4, "number of agent turns")
	cmd.Flags().StringVar(&f.mode, "mode", "", "chat mode (overrides config)")
	cmd.Flags().DurationVar(&f.timeout, "turn-timeout", time.Minute, "maximum wait for a single turn")
	return cmd
}

func newLogger(cfg config.LogConfig, w io.Writer) logging.Logger {
	level := logging.ParseLevel(cfg.Level)
	switch cfg.Format {
	case "json", "text":
		return logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Format, Output: w, Component: "chatmesh"})
	default:
		return logging.NewConsoleLogger(w, level)
	}
}

// runDemo opens a conversation with every registered agent and sends the
// prompt, then keeps the conversation going until turns agent replies were
// printed. Every reply is answered with a short follow-up so that the
// enabled agents (one at a time in round-robin) get to speak.
func runDemo(ctx context.Context, out io.Writer, m *chatmesh.ChatMesh, mode core.ChatMode, f runFlags) error {
	updates := make(chan core.AgentUpdateEvent, 64)
	unsubscribe, err := m.Start(ctx, func(ev core.AgentUpdateEvent) {
		if ev.IsTerminal() {
			updates <- ev
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	s := m.Store()
	conv, err := s.CreateConversationAndSelect(ctx, f.prompt)
	if err != nil {
		return err
	}
	if err := s.SetChatMode(ctx, mode); err != nil {
		return err
	}
	for _, def := range m.Agents() {
		if _, err := s.AddAgent(ctx, conv.ID, def.ID); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "=== %s (%s) ===\n", conv.Title, s.GetActiveChatMode())
	content := f.prompt
	for turn := 0; turn < f.turns; turn++ {
		pending := len(store.EnabledAgents(s.Snapshot()))
		if pending == 0 {
			fmt.Fprintln(out, "no agent is enabled; stopping")
			return nil
		}

		fmt.Fprintf(out, "You: %s\n", content)
		if _, err := s.SendUserMessage(ctx, content); err != nil {
			return err
		}

		for ; pending > 0; pending-- {
			ev, err := awaitTerminal(ctx, updates, f.timeout)
			if err != nil {
				return err
			}
			if ev.Status == core.AgentStatusError {
				fmt.Fprintf(out, "%s failed (%s): %s\n", ev.AgentName, ev.ErrorType, ev.Error)
				continue
			}
			if err := s.RefreshActiveConversation(ctx); err != nil {
				return err
			}
			printReply(out, s.Snapshot(), ev)
		}
		content = "Please continue."
	}
	return nil
}

func awaitTerminal(ctx context.Context, updates <-chan core.AgentUpdateEvent, timeout time.Duration) (core.AgentUpdateEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-updates:
		return ev, nil
	case <-timer.C:
		return core.AgentUpdateEvent{}, errors.New("timed out waiting for an agent reply")
	case <-ctx.Done():
		return core.AgentUpdateEvent{}, ctx.Err()
	}
}

func printReply(out io.Writer, st store.State, ev core.AgentUpdateEvent) {
	for _, msg := range st.ActiveMessages {
		if msg.ID == ev.MessageID {
			fmt.Fprintf(out, "%s: %s\n", ev.AgentName, msg.Content)
			return
		}
	}
}
