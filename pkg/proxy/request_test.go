package proxy

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"toutjavascript/infollama/pkg/proxy/types"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/upstream"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Mode
		wantErr bool
	}{
		{name: "empty body", body: "", want: ModeStreamed},
		{name: "missing stream", body: `{"model":"llama3"}`, want: ModeStreamed},
		{name: "stream true", body: `{"stream":true}`, want: ModeStreamed},
		{name: "stream false", body: `{"stream":false}`, want: ModeBuffered},
		{name: "stream false with spaces", body: `{ "stream" :  false }`, want: ModeBuffered},
		{name: "stream null", body: `{"stream":null}`, want: ModeStreamed},
		{name: "stream zero", body: `{"stream":0}`, want: ModeStreamed},
		{name: "stream string", body: `{"stream":"false"}`, want: ModeStreamed},
		{name: "truncated", body: `{"stream":fal`, wantErr: true},
		{name: "array", body: `[{"stream":false}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveMode([]byte(tt.body))
			if tt.wantErr {
				var reqErr *RequestError
				if !errors.As(err, &reqErr) || reqErr.Status != http.StatusBadRequest {
					t.Fatalf("expected 400 RequestError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveMode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveMode() = %v, want %v", got, tt.want)
			}

			again, _ := ResolveMode([]byte(tt.body))
			if again != got {
				t.Error("ResolveMode must be deterministic")
			}
		})
	}
}

func TestPromptExcerpt(t *testing.T) {
	long := strings.Repeat("é", PromptExcerptLength+50)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "generate prompt", body: `{"prompt":"  Why is\tthe sky blue? "}`, want: "Why is the sky blue?"},
		{name: "last user message", body: `{"messages":[{"role":"user","content":"first"},{"role":"assistant","content":"ok"},{"role":"user","content":"second"}]}`, want: "second"},
		{name: "multimodal parts", body: `{"messages":[{"role":"user","content":[{"type":"text","text":"describe"},{"type":"image_url"}]}]}`, want: "describe"},
		{name: "no prompt", body: `{"model":"llama3"}`, want: ""},
		{name: "truncated", body: `{"prompt":"` + long + `"}`, want: strings.Repeat("é", PromptExcerptLength) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseGenerationRequest([]byte(tt.body))
			if err != nil {
				t.Fatalf("parse error = %v", err)
			}
			got := PromptExcerpt(req)
			if got != tt.want {
				t.Errorf("PromptExcerpt() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Error("excerpt must stay valid UTF-8")
			}
		})
	}
}

func TestReadBody_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(strings.Repeat("x", 64)))
	r.Body = http.MaxBytesReader(w, r.Body, 16)

	_, err := ReadBody(r)
	if got := HandleError(err); got.HTTPStatusCode() != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", got.HTTPStatusCode())
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unauthorized", auth.ErrUnauthorized, http.StatusForbidden, types.MessageForbidden},
		{"unavailable", &upstream.UnavailableError{Endpoint: "api/tags", Cause: errors.New("connection refused")}, http.StatusInternalServerError, types.MessageUpstreamUnavailable},
		{"request", &RequestError{Message: "bad", Status: http.StatusBadRequest}, http.StatusBadRequest, "bad"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, types.MessageInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HandleError(tt.err)
			if got.HTTPStatusCode() != tt.wantStatus || got.Error != tt.wantMsg {
				t.Errorf("HandleError() = %d %q, want %d %q", got.HTTPStatusCode(), got.Error, tt.wantStatus, tt.wantMsg)
			}
		})
	}
}
