package domain

import (
	"errors"
	"time"
)

var (
	// ErrBatchSubmit is returned when a batch target is used for submission.
	ErrBatchSubmit = errors.New("submission requires a single order target")
	// ErrEmptyTarget is returned when a target holds no orders.
	ErrEmptyTarget = errors.New("target has no orders")
	// ErrLinkRequired is returned when an order is created without a link.
	ErrLinkRequired = errors.New("link is required")
)

// Order represents a purchase placed with an external provider.
type Order struct {
	// ID is assigned by the store.
	ID uint `json:"id"`
	// ExternalID is the provider's order id. Set only once a submission succeeded.
	ExternalID *string `json:"external_id"`
	// ServiceID is the provider catalog id the order is placed against.
	ServiceID *int `json:"service_id"`
	// Link is the resource the service is delivered to.
	Link string `json:"link"`
	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`
	// Status is the local lifecycle state.
	Status Status `json:"status"`
	// StartCount is the counter value reported by the provider when work began.
	StartCount int `json:"start_count"`
	// Remains is the number of units the provider has yet to deliver.
	Remains int `json:"remains"`
	// CreatedAt is the timestamp when the order was stored.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the timestamp of the last write.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrder builds a pending order after checking the quantity against the catalog.
func NewOrder(serviceID int, link string, quantity int) (*Order, error) {
	if link == "" {
		return nil, ErrLinkRequired
	}
	if err := ValidateQuantity(serviceID, quantity); err != nil {
		return nil, err
	}

	return &Order{
		ServiceID: &serviceID,
		Link:      link,
		Quantity:  quantity,
		Status:    StatusPending,
	}, nil
}

// Submitted reports whether a provider has accepted the order.
func (o *Order) Submitted() bool {
	return o.ExternalID != nil && *o.ExternalID != ""
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	Status     *Status
	ExternalID *string
	ServiceID  *int
	StartCount *int
	Remains    *int
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Status == nil && c.ExternalID == nil && c.ServiceID == nil &&
		c.StartCount == nil && c.Remains == nil
}

// StatusChange is shorthand for a status-only update.
func StatusChange(s Status) Changes {
	return Changes{Status: &s}
}

// Apply copies the set fields of c onto the order.
func (o *Order) Apply(c Changes) {
	if c.Status != nil {
		o.Status = *c.Status
	}
	if c.ExternalID != nil {
		id := *c.ExternalID
		o.ExternalID = &id
	}
	if c.ServiceID != nil {
		id := *c.ServiceID
		o.ServiceID = &id
	}
	if c.StartCount != nil {
		o.StartCount = *c.StartCount
	}
	if c.Remains != nil {
		o.Remains = *c.Remains
	}
}
