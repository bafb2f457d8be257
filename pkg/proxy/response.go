package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"toutjavascript/infollama/pkg/proxy/types"
	"toutjavascript/infollama/pkg/upstream"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeNDJSON = "application/x-ndjson"
)

// WriteJSONResponse writes v as JSON with the given status.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteErrorResponse writes a synthesized error body.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) {
	WriteJSONResponse(w, errResp.HTTPStatusCode(), errResp)
}

// writeUpstreamResponse relays a buffered upstream response. The content
// type is kept when the upstream sent one, otherwise it follows the body
// kind.
func writeUpstreamResponse(w http.ResponseWriter, resp *upstream.Response) (int64, error) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = contentTypeText
		if resp.Kind == upstream.KindJSON {
			contentType = contentTypeJSON
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	n, err := w.Write(resp.Body)
	return int64(n), err
}
