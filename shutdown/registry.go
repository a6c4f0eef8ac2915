package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"upscale_backend/core"
)

// Cleanup priorities used by the CLI. Lower values run first.
const (
	PriorityHistory = 10 // close the run-history database
	PriorityDevices = 20 // close the device pool
	PriorityLogger  = 90 // flush logs last
)

type handler struct {
	name     string
	priority int
	fn       core.ShutdownFunc
}

// Registry holds named cleanup functions and runs them once, lowest
// priority first. Handlers with equal priority run in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers []handler
	ran      bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under name. Calls after Run are ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.handlers = append(r.handlers, handler{name: name, priority: priority, fn: fn})
}

// Run calls every handler with ctx, even after failures, and returns the
// failures wrapped with the handler name. Only the first call does anything.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	ordered := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, h := range ordered {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists handler names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ordered := r.sortedLocked()
	names := make([]string, len(ordered))
	for i, h := range ordered {
		names[i] = h.name
	}
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

func (r *Registry) sortedLocked() []handler {
	ordered := make([]handler, len(r.handlers))
	copy(ordered, r.handlers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority < ordered[j].priority
	})
	return ordered
}
