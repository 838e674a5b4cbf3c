package status

import (
	"fmt"

	"github.com/google/uuid"
)

// PersistenceError is returned when a write could not be completed after retrying.
// ApplicationID is zero for writes that do not touch an application.
type PersistenceError struct {
	ApplicationID uuid.UUID
	Message       string
	Cause         error
}

func (e *PersistenceError) Error() string {
	msg := "persistence error: " + e.Message
	if e.ApplicationID != uuid.Nil {
		msg = fmt.Sprintf("persistence error for application %s: %s", e.ApplicationID, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
