package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Store
type Factory interface {
	Create(ctx context.Context) (Store, error)
}

// FactoryFunc adapts a function to Factory
type FactoryFunc func(ctx context.Context) (Store, error)

func (f FactoryFunc) Create(ctx context.Context) (Store, error) {
	return f(ctx)
}

// Registry maps database types to the factories opening them
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(storageType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[storageType] = factory
}

// Create opens the store registered for storageType
func (r *Registry) Create(ctx context.Context, storageType string) (Store, error) {
	r.mu.RLock()
	factory, exists := r.factories[storageType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage type %s not registered (available: %v)", storageType, r.Types())
	}

	return factory.Create(ctx)
}

// Types lists the registered storage types in order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storageType := range r.factories {
		types = append(types, storageType)
	}
	sort.Strings(types)
	return types
}
