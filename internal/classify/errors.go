package classify

import "fmt"

// ClassificationError represents a failure in model-based email classification
type ClassificationError struct {
	MessageID string
	Message   string
	Cause     error
}

func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("classification error for %s: %s: %v", e.MessageID, e.Message, e.Cause)
	}
	return fmt.Sprintf("classification error for %s: %s", e.MessageID, e.Message)
}

func (e *ClassificationError) Unwrap() error {
	return e.Cause
}
