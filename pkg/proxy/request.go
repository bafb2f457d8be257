package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"toutjavascript/infollama/pkg/proxy/types"
)

// Mode selects how a POST is forwarded upstream.
type Mode int

const (
	// ModeBuffered reads the whole upstream response before replying.
	ModeBuffered Mode = iota
	// ModeStreamed relays the upstream response chunk by chunk.
	ModeStreamed
)

// String returns "buffered" or "streamed".
func (m Mode) String() string {
	if m == ModeBuffered {
		return "buffered"
	}
	return "streamed"
}

// PromptExcerptLength is the maximum number of characters of a prompt
// copied into the access log.
const PromptExcerptLength = 200

// RequestError is a problem with the inbound request itself.
type RequestError struct {
	Message string
	Code    string
	Status  int
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to its JSON body.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewErrorResponse(e.Status, e.Message, e.Code)
}

// ReadBody reads the whole request body. A body larger than the configured
// limit yields a *RequestError with status 413.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &RequestError{
				Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", maxErr.Limit),
				Code:    types.CodeRequestTooLarge,
				Status:  http.StatusRequestEntityTooLarge,
			}
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// ParseGenerationRequest decodes the fields the proxy inspects. An empty body
// is accepted; anything that is not a JSON object is a *RequestError.
func ParseGenerationRequest(body []byte) (*types.GenerationRequest, error) {
	var req types.GenerationRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return &req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: types.MessageInvalidJSON,
			Code:    types.CodeInvalidJSON,
			Status:  http.StatusBadRequest,
		}
	}
	return &req, nil
}

// ResolveMode decides how a POST body is forwarded. Only "stream": false
// selects ModeBuffered; a missing key or any other value streams, which is
// the upstream's own default.
func ResolveMode(body []byte) (Mode, error) {
	req, err := ParseGenerationRequest(body)
	if err != nil {
		return ModeStreamed, err
	}
	return modeOf(req), nil
}

func modeOf(req *types.GenerationRequest) Mode {
	if req.StreamDisabled() {
		return ModeBuffered
	}
	return ModeStreamed
}

// PromptExcerpt returns a single-line excerpt of the request prompt, at most
// PromptExcerptLength characters.
func PromptExcerpt(req *types.GenerationRequest) string {
	text := strings.Join(strings.Fields(req.PromptText()), " ")
	if utf8.RuneCountInString(text) <= PromptExcerptLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PromptExcerptLength]) + "..."
}
