package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a conversation, agent or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected by a backend.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks requests the backend refused to authorize.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries per-field messages. It matches ErrValidation via errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from alternating field/message pairs.
func NewValidationError(kv ...string) *ValidationError {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", ErrValidation, strings.Join(parts, ", "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsRetryable reports whether a naive retry of the failed call is sane.
// Validation, authorization and missing-entity failures are permanent, as is
// caller cancellation; everything else is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Operation classifies what the store was doing when an error occurred.
type Operation string

const (
	OperationSave   Operation = "save"
	OperationLoad   Operation = "load"
	OperationSync   Operation = "sync"
	OperationImport Operation = "import"
	OperationReset  Operation = "reset"
)

// Domain names one error/loading slot of the store.
type Domain string

const (
	DomainConversations Domain = "conversations"
	DomainMessages      Domain = "messages"
	DomainAgents        Domain = "agents"
	DomainSending       Domain = "sending"
)

// ErrorState is the value held by a store error slot. Slots are overwritten,
// never accumulated. RetryCount is reserved for caller-driven retry
// bookkeeping; the store always writes zero.
type ErrorState struct {
	Message     string            `json:"message"`
	Operation   Operation         `json:"operation"`
	IsRetryable bool              `json:"is_retryable"`
	RetryCount  int               `json:"retry_count"`
	Timestamp   time.Time         `json:"timestamp"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// NewErrorState builds an ErrorState for err. message overrides err.Error()
// when non-empty.
func NewErrorState(op Operation, err error, message string) *ErrorState {
	if message == "" {
		message = err.Error()
	}
	st := &ErrorState{
		Message:     message,
		Operation:   op,
		IsRetryable: IsRetryable(err),
		Timestamp:   time.Now().UTC(),
	}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		st.FieldErrors = make(map[string]string, len(verr.Fields))
		for k, v := range verr.Fields {
			st.FieldErrors[k] = v
		}
	}
	return st
}

// Clone returns a deep copy of the error state (nil-safe).
func (e *ErrorState) Clone() *ErrorState {
	if e == nil {
		return nil
	}
	c := *e
	if e.FieldErrors != nil {
		c.FieldErrors = make(map[string]string, len(e.FieldErrors))
		for k, v := range e.FieldErrors {
			c.FieldErrors[k] = v
		}
	}
	return &c
}
