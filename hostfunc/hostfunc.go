package hostfunc

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// HTTPRequest is the name of the HTTP capability host function.
const HTTPRequest = "http_request"

type Func func(ctx context.Context, args map[string]any) (any, error)

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// All returns a snapshot of the registered functions.
func (r *Registry) All() map[string]Func {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.funcs)
}

// Clone returns a new Registry holding the same functions. A nil
// receiver yields an empty Registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	if r == nil {
		return c
	}
	for name, fn := range r.All() {
		c.funcs[name] = fn
	}
	return c
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.funcs))
}
