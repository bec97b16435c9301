package service

import (
	"fmt"
	"strings"

	"github.com/hupe1980/chatmesh/core"
)

// palette holds participation colors, assigned by display order.
var palette = []string{"#4f46e5", "#0891b2", "#16a34a", "#ca8a04", "#dc2626", "#9333ea", "#db2777", "#475569"}

// ColorFor returns the display color for a participation at the given order.
func ColorFor(order int) string {
	return palette[order%len(palette)]
}

func conversationNotFound(id string) error {
	return fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
}

// ValidateNewMessage checks msg and fills the default role.
func ValidateNewMessage(msg *core.NewMessage) error {
	fields := []string{}
	if msg.ConversationID == "" {
		fields = append(fields, "conversation_id", "must not be empty")
	}
	if strings.TrimSpace(msg.Content) == "" {
		fields = append(fields, "content", "must not be empty")
	}
	switch msg.Role {
	case "":
		msg.Role = core.RoleUser
	case core.RoleUser, core.RoleAssistant, core.RoleSystem:
	default:
		fields = append(fields, "role", fmt.Sprintf("unknown role %q", msg.Role))
	}
	if msg.Role == core.RoleAssistant && msg.AgentID == "" {
		fields = append(fields, "agent_id", "required for assistant messages")
	}
	if len(fields) > 0 {
		return core.NewValidationError(fields...)
	}
	return nil
}

// ValidateConversationUpdate rejects blank titles and modes.
func ValidateConversationUpdate(u core.ConversationUpdate) error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return core.NewValidationError("title", "must not be empty")
	}
	if u.ChatMode != nil && *u.ChatMode == "" {
		return core.NewValidationError("chat_mode", "must not be empty")
	}
	return nil
}
