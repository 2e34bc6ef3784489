// Copyright 2025 Certen Protocol
//
// Registry is the static {bridgeTag -> Factory} map the design notes in
// spec §9 call for, replacing the source system's dynamic per-chain
// module loading. Grounded on the teacher's strategy.Registry
// (pkg/strategy/registry.go): a mutex-guarded map populated once at
// startup, looked up by tag thereafter.

package registry

import (
	"fmt"
	"sync"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector"
)

// Factory builds the collector workers for one bridge on one chain. deps
// carries whatever shared collaborators (store, monitor, RPC client) the
// glue layer constructed; kept as interface{} to avoid an import cycle
// between this package and pkg/relayer.
type Factory func(chainCfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error)

// Registry is a static bridge-tag -> Factory map.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a bridge factory under tag. It is an error to register
// the same tag twice.
func (r *Registry) Register(tag string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("bridge %q already registered", tag)
	}
	r.factories[tag] = factory
	return nil
}

// Get looks up the factory for tag.
func (r *Registry) Get(tag string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, exists := r.factories[tag]
	if !exists {
		return nil, fmt.Errorf("no bridge registered for tag %q", tag)
	}
	return factory, nil
}

// Tags returns every registered bridge tag.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	return tags
}
