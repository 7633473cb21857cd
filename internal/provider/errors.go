package provider

import (
	"fmt"

	"deposit-core/pkg/errno"
)

// Error is a response whose embedded code is not the success sentinel.
// The provider's code and message are kept for operators; callers facing
// the outside world should surface only the errno it unwraps to.
type Error struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: code %d: %s", e.Endpoint, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return errno.ErrPaymentProvider
}

// UnavailableError is a transport level failure: timeout, reset, 5xx.
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{errno.ErrProviderUnavailable, e.Err}
}
