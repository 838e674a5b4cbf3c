package pipeline

import (
	"errors"
	"fmt"
)

// ErrEventNotFound is returned by ReprocessEvent for an unknown event id.
var ErrEventNotFound = errors.New("email event not found")

// DataError reports a stored record too malformed to act on. The email is
// flagged for review and the run continues.
type DataError struct {
	Record  string
	Message string
	Cause   error
}

func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("data error in %s: %s: %v", e.Record, e.Message, e.Cause)
	}
	return fmt.Sprintf("data error in %s: %s", e.Record, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Cause
}
