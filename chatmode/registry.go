package chatmode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
)

// ErrUnsupportedMode is returned when no handler is registered for a mode.
var ErrUnsupportedMode = errors.New("unsupported chat mode")

// Constructor builds a fresh Handler instance.
type Constructor func() Handler

// Registry maps chat mode names to handler constructors. It is safe for
// concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[core.ChatMode]Constructor
}

// NewRegistry creates a registry pre-populated with the built-in modes.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[core.ChatMode]Constructor)}
	r.Register(core.ChatModeManual, func() Handler { return NewManual() })
	r.Register(core.ChatModeRoundRobin, func() Handler { return NewRoundRobin() })
	return r
}

// Register adds or replaces the constructor for mode.
func (r *Registry) Register(mode core.ChatMode, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[mode] = c
}

// NewHandler instantiates a new handler for mode.
func (r *Registry) NewHandler(mode core.ChatMode) (Handler, error) {
	r.mu.RLock()
	c, ok := r.constructors[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnsupportedMode, mode, r.supportedList())
	}
	return c(), nil
}

// SupportedModes returns the registered mode names in sorted order.
func (r *Registry) SupportedModes() []core.ChatMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modes := make([]core.ChatMode, 0, len(r.constructors))
	for m := range r.constructors {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// IsSupported reports whether mode has a registered handler.
func (r *Registry) IsSupported(mode core.ChatMode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[mode]
	return ok
}

func (r *Registry) supportedList() string {
	modes := r.SupportedModes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the package-level helpers.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a mode to the default registry.
func Register(mode core.ChatMode, c Constructor) { defaultRegistry.Register(mode, c) }

// NewHandler instantiates a handler from the default registry.
func NewHandler(mode core.ChatMode) (Handler, error) { return defaultRegistry.NewHandler(mode) }

// SupportedModes lists the modes of the default registry.
func SupportedModes() []core.ChatMode { return defaultRegistry.SupportedModes() }

// IsSupported reports whether the default registry knows mode.
func IsSupported(mode core.ChatMode) bool { return defaultRegistry.IsSupported(mode) }
