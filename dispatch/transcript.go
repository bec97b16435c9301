package dispatch

import (
	"context"
	"errors"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
)

// transcript converts conversation history into the view of one participant:
// its own replies are assistant turns, everything else is a user turn, with
// other agents named so the model can tell speakers apart.
func transcript(history []core.Message, self string, names map[string]string, limit int) []model.Message {
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]model.Message, 0, len(history))
	for _, m := range history {
		switch {
		case m.Role == core.RoleAssistant && m.AgentID == self:
			out = append(out, model.Message{Role: model.RoleAssistant, Text: m.Content})
		case m.Role == core.RoleAssistant:
			name := names[m.AgentID]
			if name == "" {
				name = "Agent"
			}
			out = append(out, model.Message{Role: model.RoleUser, Name: name, Text: m.Content})
		case m.Role == core.RoleSystem:
			out = append(out, model.Message{Role: model.RoleUser, Name: "System", Text: m.Content})
		default:
			out = append(out, model.Message{Role: model.RoleUser, Text: m.Content})
		}
	}
	return out
}

// errorType classifies a turn failure for AgentUpdateEvent.ErrorType.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAgent):
		return "unknown_agent"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrEmptyResponse):
		return "empty_response"
	default:
		return "model_error"
	}
}
