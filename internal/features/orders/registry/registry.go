// Package registry maps provider ids to provider constructors.
package registry

import (
	"fmt"
	"sync"

	"smm-orders/internal/features/orders/adapters/smm"
	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"
)

// Constructor binds a provider to a target and the store it writes through.
type Constructor func(target domain.Target, store ports.OrderStore) (ports.Provider, error)

// ProviderNotFoundError is returned for ids without a registered constructor.
type ProviderNotFoundError struct {
	ID int
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider %d is not registered", e.ID)
}

// ProviderConstructionError wraps a constructor failure.
type ProviderConstructionError struct {
	ID  int
	Err error
}

func (e *ProviderConstructionError) Error() string {
	return fmt.Sprintf("failed to construct provider %d: %v", e.ID, e.Err)
}

func (e *ProviderConstructionError) Unwrap() error { return e.Err }

// Registry is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[int]Constructor
	defaultID    int
}

// New creates an empty registry whose CreateDefault uses defaultID.
func New(defaultID int) *Registry {
	return &Registry{
		constructors: map[int]Constructor{},
		defaultID:    defaultID,
	}
}

// NewDefaultRegistry holds the SMM provider as the only and default entry.
func NewDefaultRegistry(client *smm.Client) *Registry {
	r := New(smm.ProviderID)
	r.Register(smm.ProviderID, client.Constructor())
	return r
}

// Register sets the constructor for id, replacing any previous one.
func (r *Registry) Register(id int, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[id] = c
}

// Create instantiates provider id for target.
func (r *Registry) Create(id int, target domain.Target, store ports.OrderStore) (ports.Provider, error) {
	r.mu.RLock()
	c, ok := r.constructors[id]
	r.mu.RUnlock()

	if !ok || c == nil {
		return nil, &ProviderNotFoundError{ID: id}
	}

	p, err := c(target, store)
	if err != nil {
		return nil, &ProviderConstructionError{ID: id, Err: err}
	}
	if p == nil {
		return nil, &ProviderConstructionError{ID: id, Err: fmt.Errorf("constructor returned no provider")}
	}
	return p, nil
}

// CreateDefault instantiates the default provider for target.
func (r *Registry) CreateDefault(target domain.Target, store ports.OrderStore) (ports.Provider, error) {
	return r.Create(r.defaultID, target, store)
}
