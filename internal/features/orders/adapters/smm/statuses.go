package smm

import "smm-orders/internal/features/orders/domain"

// Provider status vocabulary. Values are matched exactly.
const (
	StatusPartial    = "Partial"
	StatusInProgress = "In progress"
	StatusCompleted  = "Completed"
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusCancelled  = "Cancelled"
)

var statusTable = map[string]domain.Status{
	StatusPartial:    domain.StatusInProgress,
	StatusInProgress: domain.StatusInProgress,
	StatusCompleted:  domain.StatusCompleted,
	StatusPending:    domain.StatusInProgress,
	StatusProcessing: domain.StatusInProgress,
	StatusCancelled:  domain.StatusCancelled,
}

// MapStatus translates a provider status. Unknown values map to pending.
func MapStatus(providerStatus string) domain.Status {
	if s, ok := statusTable[providerStatus]; ok {
		return s
	}
	return domain.StatusPending
}
