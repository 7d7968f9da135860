package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler executes one job type. Run receives the raw payload exactly as it
// was submitted; decoding and validation belong to the handler.
type Handler interface {
	Type() string
	Run(ctx context.Context, payload json.RawMessage) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for job_type=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Run routes a payload to the registered handler for jobType.
func (r *Registry) Run(ctx context.Context, jobType string, payload json.RawMessage) error {
	h, ok := r.Get(jobType)
	if !ok {
		return fmt.Errorf("no handler registered for job_type=%s", jobType)
	}
	return h.Run(ctx, payload)
}
