package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownService is returned for catalog ids that are not offered.
	ErrUnknownService = errors.New("unknown service")
	// ErrQuantityOutOfRange is returned when a quantity is outside the service bounds.
	ErrQuantityOutOfRange = errors.New("quantity out of range")
)

// ServiceType groups catalog entries by what they deliver.
type ServiceType string

const (
	ServiceTypeLikes     ServiceType = "likes"
	ServiceTypeViews     ServiceType = "views"
	ServiceTypeComments  ServiceType = "comments"
	ServiceTypeFollowers ServiceType = "followers"
)

// Service is one entry of the provider catalog.
type Service struct {
	Key         string      `json:"key"`
	ID          int         `json:"id"`
	Type        ServiceType `json:"type"`
	Minimum     int         `json:"minimum"`
	Maximum     int         `json:"maximum"`
	Description string      `json:"description"`
}

var catalog = []Service{
	{Key: "high_quality_likes", ID: 1625, Type: ServiceTypeLikes, Minimum: 20, Maximum: 100_000, Description: "High-Quality Likes"},
	{Key: "premium_quality_likes", ID: 1688, Type: ServiceTypeLikes, Minimum: 10, Maximum: 40_000, Description: "Premium-Quality Likes"},
	{Key: "high_quality_views", ID: 4939, Type: ServiceTypeViews, Minimum: 100, Maximum: 100_000_000, Description: "High-Quality Views"},
	{Key: "premium_quality_views", ID: 5980, Type: ServiceTypeViews, Minimum: 1_000, Maximum: 1_000_000, Description: "Premium-Quality Views"},
	{Key: "comments", ID: 1518, Type: ServiceTypeComments, Minimum: 1, Maximum: 5_000, Description: "Comments"},
}

// Services returns the catalog.
func Services() []Service {
	out := make([]Service, len(catalog))
	copy(out, catalog)
	return out
}

// Valid reports whether t is one of the known service types.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeLikes, ServiceTypeViews, ServiceTypeComments, ServiceTypeFollowers:
		return true
	}
	return false
}

// ServicesOfType filters the catalog by type. The result is never nil.
func ServicesOfType(t ServiceType) []Service {
	out := []Service{}
	for _, s := range catalog {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// LookupService finds a catalog entry by provider id.
func LookupService(id int) (Service, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// ValidateQuantity checks qty against the bounds of the service.
func ValidateQuantity(serviceID, qty int) error {
	s, ok := LookupService(serviceID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownService, serviceID)
	}
	if qty < s.Minimum || qty > s.Maximum {
		return fmt.Errorf("%w: %s accepts %d..%d, got %d", ErrQuantityOutOfRange, s.Key, s.Minimum, s.Maximum, qty)
	}
	return nil
}
