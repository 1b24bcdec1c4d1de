package hargaapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid price backend configuration")

	// ErrNetwork is returned when the backend could not be reached or timed out
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned when the session token was refused
	ErrUnauthorized = errors.New("unauthorized: session token refused")

	// ErrNotFound is returned for 404 responses
	ErrNotFound = errors.New("resource not found")

	// ErrUnexpectedResponse is returned when a response cannot be decoded
	ErrUnexpectedResponse = errors.New("unexpected response from price backend")
)

// RejectedError carries a business-rule rejection from the backend. Message is
// the backend's own text and is shown to the user unchanged.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by price backend (status %d): %s", e.StatusCode, e.Message)
}

// RejectionMessage returns the backend message when err is a rejection.
func RejectionMessage(err error) (string, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message, true
	}
	return "", false
}
