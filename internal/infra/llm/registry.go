package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrProviderNotFound is returned when a provider name is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// ErrNoProviderAvailable is returned when the registry holds no providers at
// all. This is a soft condition at the pipeline boundary, not a crash.
var ErrNoProviderAvailable = errors.New("no provider available")

type activeProvider struct {
	name     string
	provider Provider
}

// Registry holds the registered generation providers behind a uniform
// interface. Registration happens once at process start; afterwards the only
// mutable shared state is the active pointer, which SetActive swaps
// atomically so concurrent Generate calls never read a torn reference.
// A swap racing with an in-flight call is last-writer-wins.
type Registry struct {
	mu        sync.Mutex // guards registration only
	providers map[string]Provider
	names     []string // registration order, for stable introspection
	active    atomic.Pointer[activeProvider]
}

// NewRegistry returns an empty Registry. An empty registry is valid:
// Generate fails softly with ErrNoProviderAvailable.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under name. The first registered provider becomes
// the active one. Registering an existing name replaces the implementation
// but keeps its position.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.names = append(r.names, name)
	}
	r.providers[name] = p
	if r.active.Load() == nil {
		r.active.Store(&activeProvider{name: name, provider: p})
	}
}

// SetActive switches the active provider. An unknown name returns
// ErrProviderNotFound and leaves the current active provider unchanged.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	p, ok := r.providers[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	r.active.Store(&activeProvider{name: name, provider: p})
	return nil
}

// ActiveName returns the name of the active provider, or "" when the
// registry is empty.
func (r *Registry) ActiveName() string {
	if a := r.active.Load(); a != nil {
		return a.name
	}
	return ""
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the provider registered under name, or ErrProviderNotFound.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	p, ok := r.providers[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Resolve picks the provider for a request: the named one when name is
// non-empty, otherwise the active provider. An empty registry resolves to
// ErrNoProviderAvailable.
func (r *Registry) Resolve(name string) (Provider, string, error) {
	if name != "" {
		p, err := r.Get(name)
		if err != nil {
			return nil, "", err
		}
		return p, name, nil
	}
	a := r.active.Load()
	if a == nil {
		return nil, "", ErrNoProviderAvailable
	}
	return a.provider, a.name, nil
}

// Generate resolves a provider (named or active) and runs the completion.
func (r *Registry) Generate(ctx context.Context, name string, turns []Turn) (string, error) {
	p, resolved, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	out, genErr := p.Generate(ctx, turns)
	if genErr != nil {
		return "", fmt.Errorf("provider %s: %w", resolved, genErr)
	}
	return out, nil
}
