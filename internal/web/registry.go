package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownMethod is returned by Registry.Call for names that were never
// registered.
var ErrUnknownMethod = errors.New("unknown method")

// MethodFunc handles one remote call. params is the raw JSON body of the
// request (possibly empty); the returned value is serialized back to the
// caller.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Registry maps method names to handlers. Registration is explicit and
// typed; a name is either present with a concrete handler or the call
// fails, there is no reflective fallback.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]MethodFunc
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]MethodFunc)}
}

// Register adds fn under name. Empty names and duplicates are rejected so
// a wiring mistake surfaces at startup rather than as a shadowed method.
func (r *Registry) Register(name string, fn MethodFunc) error {
	if name == "" {
		return fmt.Errorf("method name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("method %q: handler must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.methods[name]; ok {
		return fmt.Errorf("method %q already registered", name)
	}
	r.methods[name] = fn
	return nil
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) Call(ctx context.Context, name string, params json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.methods[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return fn(ctx, params)
}
