package asset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe registry of known assets keyed by symbol.
type Registry struct {
	bySymbol map[Symbol]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		bySymbol: make(map[Symbol]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same symbol is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySymbol[a.symbol]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.symbol))
	}
	r.bySymbol[a.symbol] = a
}

// Upsert adds or replaces an asset. Used for config overrides.
func (r *Registry) Upsert(a *Asset) {
	r.mu.Lock()
	r.bySymbol[a.symbol] = a
	r.mu.Unlock()
}

// Get retrieves an asset by symbol.
func (r *Registry) Get(symbol Symbol) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[symbol]
	return a, ok
}

// MustGet retrieves an asset by symbol, panics if not found.
func (r *Registry) MustGet(symbol Symbol) *Asset {
	a, ok := r.Get(symbol)
	if !ok {
		panic(fmt.Sprintf("asset: %s not found in registry", symbol))
	}
	return a
}

// Has returns true if symbol is registered.
func (r *Registry) Has(symbol Symbol) bool {
	_, ok := r.Get(symbol)
	return ok
}

// All returns all registered assets sorted by symbol.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	result := make([]*Asset, 0, len(r.bySymbol))
	for _, a := range r.bySymbol {
		result = append(result, a)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].symbol < result[j].symbol })
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}
