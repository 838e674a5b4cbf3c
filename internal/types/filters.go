package types

import "github.com/google/uuid"

// EventFilter narrows an email event listing. Zero fields do not filter.
type EventFilter struct {
	UserID      uuid.UUID
	Label       Label
	NeedsReview *bool
	Limit       int
	Offset      int
}

// ApplicationFilter narrows an application listing. Zero fields do not filter.
type ApplicationFilter struct {
	UserID uuid.UUID
	Status Status
	Limit  int
}

// Listing defaults
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// NormalizeLimit clamps a requested page size to [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
