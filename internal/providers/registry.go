package providers

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds one adapter per provider kind and the outcome of its last resolution
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
	statuses map[Kind]*ProviderStatus
	now      func() time.Time
}

// ProviderStatus holds the last resolution outcome of a provider
type ProviderStatus struct {
	Provider  Kind
	Name      string
	Healthy   bool
	Status    string // e.g. "Pending", "Online", "Error: no playable sources"
	LastCheck time.Time
	LastError *ResolutionError
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[Kind]Adapter),
		statuses: make(map[Kind]*ProviderStatus),
		now:      time.Now,
	}
}

// Register adds an adapter to the registry
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("cannot register nil adapter")
	}

	kind := adapter.Kind()
	if _, err := ParseKind(string(kind)); err != nil {
		return fmt.Errorf("cannot register adapter %q: %w", adapter.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[kind]; exists {
		return fmt.Errorf("provider %s is already registered", kind)
	}

	r.adapters[kind] = adapter
	r.statuses[kind] = &ProviderStatus{
		Provider: kind,
		Name:     adapter.Name(),
		Status:   "Pending",
	}
	return nil
}

// Get returns the adapter for kind
func (r *Registry) Get(kind Kind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("provider %s not registered", kind)
	}
	return adapter, nil
}

// Kinds returns the registered kinds in display order
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.adapters))
	for _, kind := range Kinds {
		if _, ok := r.adapters[kind]; ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Count returns the number of registered adapters
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Record stores the outcome of a resolution attempt
func (r *Registry) Record(kind Kind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[kind]
	if !ok {
		return
	}

	status.LastCheck = r.now()
	if err == nil {
		status.Healthy = true
		status.Status = "Online"
		status.LastError = nil
		return
	}

	status.Healthy = false
	status.LastError = AsResolutionError(kind, err)
	if status.LastError.Reason == ReasonTransport && status.LastError.Err != nil {
		status.Status = fmt.Sprintf("Offline: %v", status.LastError.Err)
	} else {
		status.Status = fmt.Sprintf("Error: %s", status.LastError.Reason)
	}
}

// Statuses returns a copy of all provider statuses sorted by kind
func (r *Registry) Statuses() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]ProviderStatus, 0, len(r.statuses))
	for _, status := range r.statuses {
		statuses = append(statuses, *status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Provider < statuses[j].Provider
	})
	return statuses
}
