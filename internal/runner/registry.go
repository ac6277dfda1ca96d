package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Module is one report section. Run is called at most once per report run.
type Module interface {
	Run(ctx context.Context, rc *Context) error
}

// ModuleFunc adapts a function to Module.
type ModuleFunc func(ctx context.Context, rc *Context) error

// Run calls f.
func (f ModuleFunc) Run(ctx context.Context, rc *Context) error {
	return f(ctx, rc)
}

// Factory builds a fresh Module instance for a run.
type Factory func() Module

// Registry maps module names to factories. It is built once at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string // registration order
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a module. Registering the same name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("register module: name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("register module: %q already registered", name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns module names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Sorted returns module names alphabetically.
func (r *Registry) Sorted() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

// New instantiates a registered module.
func (r *Registry) New(name string) (Module, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("module %q is not registered", name)
	}
	return f(), nil
}
