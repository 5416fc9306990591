package chatclient

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

// APIError is a chat service failure carrying the HTTP status. A zero status
// means the request never produced a response (network/timeout).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("chat service unreachable: %s", e.Message)
	}
	return fmt.Sprintf("chat service error (status %d): %s", e.Status, e.Message)
}

// StatusOf extracts the HTTP status from an error, or 0 when there is none.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// IsRateLimited reports whether err is an HTTP 429 from the chat service.
func IsRateLimited(err error) bool {
	return StatusOf(err) == fasthttp.StatusTooManyRequests
}

// IsUnauthorized reports whether err is an HTTP 401 from the chat service.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == fasthttp.StatusUnauthorized
}
