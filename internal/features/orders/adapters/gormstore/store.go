// Package gormstore persists orders with GORM (SQLite or PostgreSQL).
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"smm-orders/internal/features/orders/domain"
	"smm-orders/internal/features/orders/ports"

	"gorm.io/gorm"
)

// Store implements ports.OrderRepository.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on db, which may be a transaction.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts the order and copies the generated id and timestamps back.
func (s *Store) Create(ctx context.Context, order *domain.Order) error {
	rec := fromDomain(order)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.ID = rec.ID
	order.Status = domain.Status(rec.Status)
	order.CreatedAt = rec.CreatedAt
	order.UpdatedAt = rec.UpdatedAt
	return nil
}

// Get retrieves an order by ID.
func (s *Store) Get(ctx context.Context, id uint) (*domain.Order, error) {
	var rec OrderRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomain(rec)
}

// GetMany retrieves the existing orders among ids.
func (s *Store) GetMany(ctx context.Context, ids []uint) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return []*domain.Order{}, nil
	}

	var recs []OrderRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toDomainList(recs)
}

// ListSyncable pages through submitted orders the provider may still change.
func (s *Store) ListSyncable(ctx context.Context, afterID uint, limit int) ([]*domain.Order, error) {
	var recs []OrderRecord
	err := s.db.WithContext(ctx).
		Where("external_id IS NOT NULL AND external_id <> ''").
		Where("status NOT IN ?", []string{string(domain.StatusCompleted), string(domain.StatusCancelled)}).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(recs)
}

// UpdateFields writes the set fields of changes.
func (s *Store) UpdateFields(ctx context.Context, id uint, changes domain.Changes) error {
	if changes.IsEmpty() {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&OrderRecord{}).Where("id = ?", id).Updates(columns(changes))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ports.ErrOrderNotFound
	}
	return nil
}

// FindByExternalID returns nil, nil when no order matches.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	var rec OrderRecord
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).Order("id").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec)
}

// BulkUpdateWhereExternalIDIn applies changes to all matching orders in one statement.
func (s *Store) BulkUpdateWhereExternalIDIn(ctx context.Context, externalIDs []string, changes domain.Changes) error {
	if len(externalIDs) == 0 || changes.IsEmpty() {
		return nil
	}

	return s.db.WithContext(ctx).
		Model(&OrderRecord{}).
		Where("external_id IN ?", externalIDs).
		Updates(columns(changes)).Error
}
