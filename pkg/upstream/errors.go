package upstream

import "fmt"

// UnavailableError reports that the upstream could not be reached or the
// connection failed before any response byte was received.
type UnavailableError struct {
	// Endpoint is the endpoint being called (e.g., "api/chat").
	Endpoint string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable (%s): %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// BodyTooLargeError reports a buffered upstream body larger than the
// client's limit. The body is discarded rather than relayed truncated.
type BodyTooLargeError struct {
	Endpoint string
	Limit    int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("upstream body for %s exceeds %d bytes", e.Endpoint, e.Limit)
}
