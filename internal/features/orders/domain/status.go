package domain

import "fmt"

// Status is the local, provider independent order state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusPaused     Status = "paused"
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusCancelled,
	StatusCompleted,
	StatusPaused,
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether the provider will do no further work.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string { return string(s) }
