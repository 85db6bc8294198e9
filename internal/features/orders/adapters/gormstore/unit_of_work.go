package gormstore

import (
	"context"

	"smm-orders/internal/features/orders/ports"

	"gorm.io/gorm"
)

// UnitOfWorkFactory creates UnitOfWork instances on one connection pool.
type UnitOfWorkFactory struct {
	db *gorm.DB
}

// NewUnitOfWorkFactory creates a factory for GORM-based unit of work instances.
func NewUnitOfWorkFactory(db *gorm.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db}
}

// Create returns a fresh unit of work. Instances must not be shared between goroutines.
func (f *UnitOfWorkFactory) Create() ports.UnitOfWork {
	return &UnitOfWork{db: f.db}
}

// UnitOfWork wraps one GORM transaction.
type UnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

// Begin starts the transaction. Calling it twice is a no-op.
func (uow *UnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}

	tx := uow.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	uow.tx = tx
	return nil
}

// Commit finalizes the transaction.
func (uow *UnitOfWork) Commit(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Commit().Error
	uow.tx = nil
	return err
}

// Rollback discards the transaction.
func (uow *UnitOfWork) Rollback(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Rollback().Error
	uow.tx = nil
	return err
}

// Orders returns a store inside the active transaction, or on the plain
// connection when none is active.
func (uow *UnitOfWork) Orders() ports.OrderStore {
	db := uow.db
	if uow.tx != nil {
		db = uow.tx
	}
	return NewStore(db)
}
