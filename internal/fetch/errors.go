package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTPStatus is wrapped by *Error when the server answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrRedirectRejected is wrapped by *RedirectError when a redirect target is refused.
	ErrRedirectRejected = errors.New("redirect rejected")

	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")
)

// Error describes a failed fetch.
// StatusCode is zero for transport failures (DNS, refused connection, timeout).
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0 if err is not an *Error
// carrying one.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
