package meli

import (
	"fmt"
)

// Error is returned by the authenticated request wrapper for
// non-success marketplace responses.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status: %d, message: %s, error: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("status: %d, message: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newAPIError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}
