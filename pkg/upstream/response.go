package upstream

import "encoding/json"

// Kind tells whether an upstream body is JSON.
type Kind int

const (
	// KindText is any body that does not parse as JSON, including empty bodies.
	KindText Kind = iota
	// KindJSON is a body that parses as a JSON value.
	KindJSON
)

// String returns "json" or "text".
func (k Kind) String() string {
	if k == KindJSON {
		return "json"
	}
	return "text"
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Kind        Kind
}

// DetectKind classifies a body.
func DetectKind(body []byte) Kind {
	if len(body) > 0 && json.Valid(body) {
		return KindJSON
	}
	return KindText
}

// ServerError reports whether the upstream answered with a 5xx status.
func (r *Response) ServerError() bool {
	return r.StatusCode >= 500
}
