package types

import (
	"encoding/json"
	"strings"
)

// GenerationRequest holds the fields the proxy inspects in a POST body.
// Everything else is forwarded untouched.
type GenerationRequest struct {
	// Model is the requested model name.
	Model string `json:"model,omitempty"`

	// Prompt is the completion prompt (api/generate, v1/completions).
	Prompt json.RawMessage `json:"prompt,omitempty"`

	// Messages is the conversation (api/chat, v1/chat/completions).
	Messages []Message `json:"messages,omitempty"`

	// Stream is kept raw so that only a literal false selects buffered mode.
	Stream json.RawMessage `json:"stream,omitempty"`
}

// Message is one entry in a chat conversation.
type Message struct {
	Role string `json:"role"`

	// Content is a plain string for Ollama and most OpenAI clients, or an
	// array of typed parts for multimodal OpenAI requests.
	Content json.RawMessage `json:"content"`
}

// StreamDisabled reports whether the body set "stream" to the JSON literal
// false.
func (r *GenerationRequest) StreamDisabled() bool {
	return strings.TrimSpace(string(r.Stream)) == "false"
}

// PromptText returns the prompt, or the last user message when the request
// is a chat. It is empty when neither is present.
func (r *GenerationRequest) PromptText() string {
	if text := rawText(r.Prompt); text != "" {
		return text
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return rawText(r.Messages[i].Content)
		}
	}
	return ""
}

// rawText decodes a JSON string, or joins the "text" fields of an array of
// content parts.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, " ")
	}

	return ""
}
