package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Role of a message as seen by the model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript handed to a model. Name identifies
// the speaker when several agents share a transcript.
type Message struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// Request captures the normalized model input produced by the dispatcher.
type Request struct {
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
	Stream       bool      `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required to produce an agent turn.
//
// Generate emits zero or more partial responses followed by exactly one final
// response, or a single error. Both channels are closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyResponse is returned by Collect when a model finished without a final response.
var ErrEmptyResponse = errors.New("model returned no final response")

// Collect drains the channels returned by Generate and returns the final response.
func Collect(ctx context.Context, out <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final Response
		done  bool
	)
	for out != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			if !r.Partial {
				final, done = r, true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !done {
		return Response{}, ErrEmptyResponse
	}
	return final, nil
}

// MockModel is a lightweight in-memory Model useful for tests and demos.
type MockModel struct {
	info Info

	mu        sync.RWMutex
	responses map[string]string
	err       error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Generate call fail with err (nil resets).
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate implements Model; emits optional streaming chunks then the final response.
// The reply is the canned response for the last message text, or an echo.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.RLock()
	failure := m.err
	m.mu.RUnlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if failure != nil {
			errCh <- failure
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		input := req.Messages[len(req.Messages)-1].Text

		m.mu.RLock()
		full := m.responses[input]
		m.mu.RUnlock()
		if full == "" {
			full = fmt.Sprintf("%s: %s", m.info.Name, strings.TrimSpace(input))
		}

		if req.Stream {
			for _, word := range strings.SplitAfter(full, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: word}:
				}
			}
		}
		respCh <- Response{Text: full, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// Content renders the message text, prefixed with the speaker name when set.
func (m Message) Content() string {
	if m.Name == "" {
		return m.Text
	}
	return m.Name + ": " + m.Text
}
