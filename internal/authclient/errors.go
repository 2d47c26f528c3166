package authclient

import (
	"errors"
	"fmt"
)

// AuthenticationError is returned when the service answered with a non-2xx
// status. Message carries the server supplied reason, if any.
type AuthenticationError struct {
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authclient: status %d", e.StatusCode)
	}
	return fmt.Sprintf("authclient: status %d: %s", e.StatusCode, e.Message)
}

// TransportError is returned when no usable response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("authclient: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAuthentication reports whether err is an *AuthenticationError.
func IsAuthentication(err error) (*AuthenticationError, bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}
