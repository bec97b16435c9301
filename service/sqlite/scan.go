package sqlite

import (
	"fmt"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (core.Conversation, error) {
	var (
		c                    core.Conversation
		mode                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Title, &mode, &createdAt, &updatedAt); err != nil {
		return core.Conversation{}, err
	}
	c.ChatMode = core.ChatMode(mode)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Conversation{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Conversation{}, err
	}
	return c, nil
}

func scanAgent(row scanner) (core.ConversationAgent, error) {
	var (
		a                 core.ConversationAgent
		enabled, isActive int
		addedAt           string
	)
	if err := row.Scan(&a.ID, &a.ConversationID, &a.AgentID, &enabled, &a.DisplayOrder, &addedAt, &isActive, &a.Color); err != nil {
		return core.ConversationAgent{}, err
	}
	a.Enabled = enabled != 0
	a.IsActive = isActive != 0

	var err error
	if a.AddedAt, err = parseTime(addedAt); err != nil {
		return core.ConversationAgent{}, err
	}
	return a, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func conversationNotFound(id string) error {
	return fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
}
