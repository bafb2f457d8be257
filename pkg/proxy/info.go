package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"toutjavascript/infollama/pkg/proxy/types"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/telemetry/logging"
	"toutjavascript/infollama/pkg/upstream"
)

// Policy endpoints guarding the /info data pages.
const (
	endpointInfoDevice = "info/device"
	endpointInfoPs     = "info/ps"
)

func (rt *Router) handleInfoPage(w http.ResponseWriter, r *http.Request) {
	rt.serveStatic(w, r, "text/html; charset=utf-8", indexHTML)
}

func (rt *Router) handleFavicon(w http.ResponseWriter, r *http.Request) {
	rt.serveStatic(w, r, "image/svg+xml", faviconSVG)
}

func (rt *Router) handleRobots(w http.ResponseWriter, r *http.Request) {
	rt.serveStatic(w, r, "text/plain; charset=utf-8", []byte(robotsTXT))
}

func (rt *Router) serveStatic(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	meta := newRequestMetadata(r)

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	n, _ := w.Write(body)
	meta.bytes = int64(n)

	rt.finish(meta, http.StatusOK, logging.SeverityDebug)
}

// handlePing reports the proxy, upstream and caller state. Any caller may
// ping; the response tells it whether the model server is answering and
// which identity its token resolved to.
func (rt *Router) handlePing(w http.ResponseWriter, r *http.Request) {
	meta := newRequestMetadata(r)
	cfg := rt.state.Config

	userType := meta.Identity.Class.String()
	if rt.state.Policy.Openbar() {
		userType = auth.OpenbarName
	}

	ollamaVersion := rt.state.Upstream.Version(r.Context())

	resp := types.PingResponse{
		Ping:          ollamaVersion != "",
		ProxyVersion:  rt.state.Version,
		OllamaVersion: ollamaVersion,
		User: types.PingUser{
			UserType: userType,
			UserName: meta.Identity.Name,
			Token:    auth.MaskToken(meta.Identity.Token),
		},
		Config: types.PingConfig{
			BaseURL:         cfg.UpstreamBaseURL,
			Host:            cfg.BindHost,
			Port:            cfg.BindPort,
			LANIP:           LANIP(),
			CORSPolicy:      cfg.CORSPolicy,
			AnonymousAccess: cfg.AnonymousAccess,
			LogLevel:        cfg.LogLevel,
		},
	}

	if !resp.Ping {
		meta.addDetail("upstream unreachable")
	}

	WriteJSONResponse(w, http.StatusOK, resp)
	rt.finish(meta, http.StatusOK, logging.SeverityDebug)
}

// handleDevice returns the cached host inventory.
func (rt *Router) handleDevice(w http.ResponseWriter, r *http.Request) {
	meta := newRequestMetadata(r)
	if !rt.authorize(w, meta, endpointInfoDevice) {
		return
	}

	// The inventory is collected once and shared; a client hanging up must
	// not leave it half-filled.
	info := rt.device.Get(context.WithoutCancel(r.Context()))

	WriteJSONResponse(w, http.StatusOK, info)
	rt.finish(meta, http.StatusOK, logging.SeverityDebug)
}

// handleProcesses relays upstream api/ps and adds a readable time-to-unload
// to every running model.
func (rt *Router) handleProcesses(w http.ResponseWriter, r *http.Request) {
	meta := newRequestMetadata(r)
	if !rt.authorize(w, meta, endpointInfoPs) {
		return
	}
	meta.Mode = ModeBuffered.String()

	resp, err := rt.state.Upstream.Get(r.Context(), "api/ps", nil)
	if err != nil || resp.ServerError() || resp.StatusCode != http.StatusOK || resp.Kind != upstream.KindJSON {
		rt.relay(w, r, meta, resp, err, logging.SeverityDebug)
		return
	}

	var list types.ProcessList
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		rt.relay(w, r, meta, resp, nil, logging.SeverityDebug)
		return
	}

	AnnotateExpiry(list.Models, time.Now())

	WriteJSONResponse(w, http.StatusOK, list)
	rt.finish(meta, http.StatusOK, logging.SeverityDebug)
}

// AnnotateExpiry adds expires_in ("N min" or "N sec") and expires_in_seconds
// to every model carrying an RFC 3339 expires_at.
func AnnotateExpiry(models []map[string]any, now time.Time) {
	for _, model := range models {
		raw, ok := model["expires_at"].(string)
		if !ok {
			continue
		}
		expiresAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}

		remaining := expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		model["expires_in"] = FormatExpiry(remaining)
		model["expires_in_seconds"] = int64(remaining.Seconds())
	}
}

// FormatExpiry renders a duration as whole minutes, or as seconds when it
// rounds to less than a minute.
func FormatExpiry(d time.Duration) string {
	if minutes := math.Round(d.Minutes()); minutes > 0 {
		return fmt.Sprintf("%d min", int64(minutes))
	}
	return fmt.Sprintf("%d sec", int64(math.Round(d.Seconds())))
}
