package ports

import (
	"context"
	"errors"

	"smm-orders/internal/features/orders/domain"
)

// ErrOrderNotFound is returned when the order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// OrderStore is the persistence surface providers write through.
// This is a Secondary Port (Driven Port).
type OrderStore interface {
	// UpdateFields writes the set fields of changes onto the order with the given id.
	UpdateFields(ctx context.Context, id uint, changes domain.Changes) error
	// FindByExternalID returns nil, nil when no order carries the provider id.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Order, error)
	// BulkUpdateWhereExternalIDIn applies changes to every order whose provider id is listed.
	BulkUpdateWhereExternalIDIn(ctx context.Context, externalIDs []string, changes domain.Changes) error
}

// OrderRepository covers what the API and the scheduler need beyond OrderStore.
type OrderRepository interface {
	OrderStore
	// Create stores a new order and assigns its ID.
	Create(ctx context.Context, order *domain.Order) error
	// Get returns ErrOrderNotFound when the id is unknown.
	Get(ctx context.Context, id uint) (*domain.Order, error)
	// GetMany returns the orders found among ids, in id order.
	GetMany(ctx context.Context, ids []uint) ([]*domain.Order, error)
	// ListSyncable returns submitted orders in a non-terminal status with an id
	// greater than afterID, at most limit of them, ordered by id.
	ListSyncable(ctx context.Context, afterID uint, limit int) ([]*domain.Order, error)
}

// UnitOfWork scopes store writes to one transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Orders returns a store bound to the active transaction, or to the
	// plain connection when none is active.
	Orders() OrderStore
}

// UnitOfWorkFactory hands out a fresh UnitOfWork per business operation.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Provider talks to one external order provider on behalf of a target.
// This is a Secondary Port (Driven Port).
type Provider interface {
	// ID is the provider's numeric identifier, stored as the order's service id on submit.
	ID() int
	// Submit places the single targeted order.
	Submit(ctx context.Context, interval domain.Interval) error
	// FetchStatuses reconciles every targeted order with the provider's view.
	FetchStatuses(ctx context.Context) error
	// Cancel asks the provider to cancel every targeted order.
	Cancel(ctx context.Context) error
}

// ProviderFactory instantiates the default provider for a target.
type ProviderFactory interface {
	CreateDefault(target domain.Target, store OrderStore) (Provider, error)
}

// OrderService defines the primary port for order operations.
type OrderService interface {
	CreateOrder(ctx context.Context, serviceID int, link string, quantity int) (*domain.Order, error)
	GetOrder(ctx context.Context, id uint) (*domain.Order, error)
	GetOrders(ctx context.Context, ids []uint) ([]*domain.Order, error)
	// Start reports success instead of returning an error; failures are
	// compensated and logged inside.
	Start(ctx context.Context, order *domain.Order, interval domain.Interval) bool
	SyncStatuses(ctx context.Context, target domain.Target) error
	Cancel(ctx context.Context, target domain.Target) error
}
