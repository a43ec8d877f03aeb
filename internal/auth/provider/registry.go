package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider from its settings.
type Factory func(ctx context.Context, cfg Config) (OAuthProvider, error)

// Registry holds provider factories and allows lookup by provider name.
// It performs no auth logic itself.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Provider names must be unique.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("oauth provider already registered: %s", name)
	}
	r.factories[name] = f
	return nil
}

// Build returns a provider for cfg.Name or an error if not registered.
func (r *Registry) Build(ctx context.Context, cfg Config) (OAuthProvider, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", cfg.Name)
	}
	return f(ctx, cfg)
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
