package types

import "net/http"

// ErrorResponse is the JSON body the proxy returns for every error it
// synthesizes itself. Upstream error text is never copied into it.
type ErrorResponse struct {
	// Error is a short, human-readable message.
	Error string `json:"error"`

	// Code is a machine-readable error code. Omitted for authorization
	// failures so the body stays {"error":"forbidden"}.
	Code string `json:"code,omitempty"`

	status int
}

// Error messages.
const (
	MessageForbidden           = "forbidden"
	MessageInvalidJSON         = "request body is not valid JSON"
	MessageRequestTooLarge     = "request body too large"
	MessageMethodNotAllowed    = "method not allowed"
	MessageUpstreamUnavailable = "upstream service unavailable"
	MessageUpstreamError       = "upstream service error"
	MessageInternalError       = "internal error"
	MessageRateLimited         = "too many requests"
)

// Error code constants.
const (
	CodeInvalidJSON         = "invalid_json"
	CodeRequestTooLarge     = "request_too_large"
	CodeMethodNotAllowed    = "method_not_allowed"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamError       = "upstream_error"
	CodeInternalError       = "internal_error"
	CodeRateLimited         = "rate_limit_exceeded"
)

// NewErrorResponse creates an error response carrying its HTTP status.
func NewErrorResponse(status int, message, code string) *ErrorResponse {
	return &ErrorResponse{Error: message, Code: code, status: status}
}

// NewForbiddenError is returned when the access policy rejects a call (403).
func NewForbiddenError() *ErrorResponse {
	return NewErrorResponse(http.StatusForbidden, MessageForbidden, "")
}

// NewInvalidJSONError is returned for a malformed request body (400).
func NewInvalidJSONError() *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, MessageInvalidJSON, CodeInvalidJSON)
}

// NewRequestTooLargeError is returned when the body exceeds the limit (413).
func NewRequestTooLargeError() *ErrorResponse {
	return NewErrorResponse(http.StatusRequestEntityTooLarge, MessageRequestTooLarge, CodeRequestTooLarge)
}

// NewMethodNotAllowedError is returned for unsupported methods (405).
func NewMethodNotAllowedError() *ErrorResponse {
	return NewErrorResponse(http.StatusMethodNotAllowed, MessageMethodNotAllowed, CodeMethodNotAllowed)
}

// NewUpstreamUnavailableError is returned when the upstream cannot be
// reached (500).
func NewUpstreamUnavailableError() *ErrorResponse {
	return NewErrorResponse(http.StatusInternalServerError, MessageUpstreamUnavailable, CodeUpstreamUnavailable)
}

// NewBadGatewayError is returned when the upstream answers with a 5xx (502).
func NewBadGatewayError() *ErrorResponse {
	return NewErrorResponse(http.StatusBadGateway, MessageUpstreamError, CodeUpstreamError)
}

// NewServerError is returned for unexpected internal failures (500).
func NewServerError() *ErrorResponse {
	return NewErrorResponse(http.StatusInternalServerError, MessageInternalError, CodeInternalError)
}

// NewRateLimitedError is returned when a client exceeds the rate limit (429).
func NewRateLimitedError() *ErrorResponse {
	return NewErrorResponse(http.StatusTooManyRequests, MessageRateLimited, CodeRateLimited)
}

// HTTPStatusCode returns the HTTP status for the response, defaulting to 500.
func (e *ErrorResponse) HTTPStatusCode() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}
