package gormstore

import (
	"fmt"
	"time"

	"smm-orders/internal/features/orders/domain"
)

// OrderRecord is the orders table row.
type OrderRecord struct {
	ID         uint    `gorm:"primaryKey"`
	ExternalID *string `gorm:"column:external_id;size:191;index"`
	Service    *int    `gorm:"column:service"`
	Link       string  `gorm:"not null"`
	Quantity   int     `gorm:"not null"`
	Status     string  `gorm:"size:32;not null;default:pending;index"`
	StartCount int     `gorm:"not null;default:0"`
	Remains    int     `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the table name for the OrderRecord.
func (OrderRecord) TableName() string {
	return "orders"
}

// Models lists what database.Migrate must create for this store.
func Models() []any {
	return []any{&OrderRecord{}}
}

func fromDomain(o *domain.Order) OrderRecord {
	status := o.Status
	if status == "" {
		status = domain.StatusPending
	}
	return OrderRecord{
		ID:         o.ID,
		ExternalID: o.ExternalID,
		Service:    o.ServiceID,
		Link:       o.Link,
		Quantity:   o.Quantity,
		Status:     string(status),
		StartCount: o.StartCount,
		Remains:    o.Remains,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toDomain(r OrderRecord) (*domain.Order, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", r.ID, err)
	}
	return &domain.Order{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		ServiceID:  r.Service,
		Link:       r.Link,
		Quantity:   r.Quantity,
		Status:     status,
		StartCount: r.StartCount,
		Remains:    r.Remains,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func toDomainList(records []OrderRecord) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(records))
	for _, r := range records {
		o, err := toDomain(r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// columns converts a patch into an Updates map keyed by column name.
func columns(c domain.Changes) map[string]any {
	cols := map[string]any{}
	if c.Status != nil {
		cols["status"] = string(*c.Status)
	}
	if c.ExternalID != nil {
		cols["external_id"] = *c.ExternalID
	}
	if c.ServiceID != nil {
		cols["service"] = *c.ServiceID
	}
	if c.StartCount != nil {
		cols["start_count"] = *c.StartCount
	}
	if c.Remains != nil {
		cols["remains"] = *c.Remains
	}
	return cols
}
