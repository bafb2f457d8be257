package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"toutjavascript/infollama/pkg/device"
	"toutjavascript/infollama/pkg/proxy/types"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/telemetry/logging"
	"toutjavascript/infollama/pkg/upstream"
)

// maxLoggedUpstreamBody bounds how much of an upstream error body is copied
// into the diagnostic log.
const maxLoggedUpstreamBody = 512

// Router dispatches every inbound request: the /info pages are served
// locally, everything else is authorized and forwarded upstream.
type Router struct {
	state  *State
	device *device.Inventory
	mux    chi.Router
	logger *slog.Logger

	// local holds the endpoints served by the router itself. A method they
	// do not register is refused instead of falling through to the upstream.
	local map[string]bool
}

// NewRouter builds the router for state.
func NewRouter(state *State) (*Router, error) {
	if state == nil {
		return nil, errors.New("proxy state is required")
	}
	if err := state.validate(); err != nil {
		return nil, fmt.Errorf("invalid proxy state: %w", err)
	}

	logger := state.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Router{
		state:  state,
		device: state.Device,
		logger: logger.With("component", "proxy.router"),
	}
	rt.local = map[string]bool{
		"info":             true,
		"info/ping":        true,
		endpointInfoDevice: true,
		endpointInfoPs:     true,
		"favicon.ico":      true,
		"robots.txt":       true,
	}
	if rt.device == nil {
		rt.device = device.NewInventory(logger)
	}

	mux := chi.NewRouter()
	mux.Use(auth.NewIdentityMiddleware(state.Users).Handle)

	mux.Get("/info", rt.handleInfoPage)
	mux.Get("/info/ping", rt.handlePing)
	mux.Post("/info/ping", rt.handlePing)
	mux.Get("/info/device", rt.handleDevice)
	mux.Get("/info/ps", rt.handleProcesses)
	mux.Get("/favicon.ico", rt.handleFavicon)
	mux.Get("/robots.txt", rt.handleRobots)

	if state.Metrics.Enabled() && state.Config.Metrics.Path != "" {
		mux.Method(http.MethodGet, state.Config.Metrics.Path, state.Metrics.Handler())
		rt.local[auth.NormalizeEndpoint(state.Config.Metrics.Path)] = true
	}

	mux.MethodNotAllowed(rt.handleMethodNotAllowed)
	mux.HandleFunc("/*", rt.handleAPI)

	rt.mux = mux
	return rt, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// handleAPI forwards an upstream API call after authorization.
func (rt *Router) handleAPI(w http.ResponseWriter, r *http.Request) {
	meta := newRequestMetadata(r)

	if (r.Method != http.MethodGet && r.Method != http.MethodPost) || rt.local[meta.Endpoint] {
		meta.addDetail("method not allowed")
		rt.fail(w, meta, types.NewMethodNotAllowedError())
		return
	}

	if !rt.authorize(w, meta, meta.Endpoint) {
		return
	}
	if !auth.IsUpstream(meta.Endpoint) {
		meta.addDetail(auth.ReasonUnknown)
		rt.fail(w, meta, types.NewForbiddenError())
		return
	}

	severity := severityFor(meta.Endpoint)

	if r.Method == http.MethodGet {
		meta.Mode = ModeBuffered.String()
		resp, err := rt.state.Upstream.Get(r.Context(), meta.Endpoint, r.URL.Query())
		rt.relay(w, r, meta, resp, err, severity)
		return
	}

	body, err := ReadBody(r)
	if err != nil {
		meta.addDetail(err.Error())
		rt.fail(w, meta, HandleError(err))
		return
	}

	req, err := ParseGenerationRequest(body)
	if err != nil {
		meta.addDetail(err.Error())
		rt.fail(w, meta, HandleError(err))
		return
	}

	mode := modeOf(req)
	meta.Mode = mode.String()
	meta.addDetail(meta.Mode)
	if req.Model != "" {
		meta.addDetail("model=" + req.Model)
	}
	if rt.state.Events.IncludePrompts() {
		if excerpt := PromptExcerpt(req); excerpt != "" {
			meta.addDetail("prompt=" + strconv.Quote(excerpt))
		}
	}

	switch mode {
	case ModeBuffered:
		resp, err := rt.state.Upstream.PostBuffered(r.Context(), meta.Endpoint, body, r.URL.Query())
		rt.relay(w, r, meta, resp, err, severity)
	default:
		rt.stream(w, r, meta, body, severity)
	}
}

// authorize applies the access policy. On rejection it writes the 403 and
// the access record and returns false.
func (rt *Router) authorize(w http.ResponseWriter, meta *RequestMetadata, endpoint string) bool {
	decision := rt.state.Policy.Authorize(meta.Identity, endpoint)
	meta.IdentityName = decision.IdentityName
	rt.state.Metrics.RecordAccessDecision(meta.Identity.Class.String(), decision.Allowed)

	if decision.Allowed {
		return true
	}

	meta.addDetail(decision.Reason)
	rt.fail(w, meta, HandleError(decision.Err()))
	return false
}

// relay writes a buffered upstream result, mapping failures to synthesized
// errors.
func (rt *Router) relay(w http.ResponseWriter, r *http.Request, meta *RequestMetadata, resp *upstream.Response, err error, severity logging.Severity) {
	if err != nil {
		rt.upstreamFailed(w, r, meta, err)
		return
	}

	if resp.ServerError() {
		rt.badGateway(w, r, meta, resp.StatusCode, resp.Body)
		return
	}

	n, werr := writeUpstreamResponse(w, resp)
	if werr != nil {
		logging.FromContext(r.Context(), rt.logger).Debug("failed to write response to client", "error", werr)
	}
	meta.bytes = n

	if resp.StatusCode >= http.StatusBadRequest {
		severity = logging.SeverityError
	}
	rt.finish(meta, resp.StatusCode, severity)
}

// stream relays a streamed upstream response chunk by chunk. The first chunk
// is read before any header is written so that an upstream that fails
// before sending anything still gets a proper 500.
func (rt *Router) stream(w http.ResponseWriter, r *http.Request, meta *RequestMetadata, body []byte, severity logging.Severity) {
	st, err := rt.state.Upstream.Stream(r.Context(), meta.Endpoint, body, r.URL.Query())
	if err != nil {
		rt.upstreamFailed(w, r, meta, err)
		return
	}
	defer st.Close()

	chunk, err := st.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		rt.upstreamFailed(w, r, meta, err)
		return
	}

	if st.StatusCode >= http.StatusInternalServerError {
		rt.badGateway(w, r, meta, st.StatusCode, chunk)
		return
	}

	contentType := st.ContentType
	if contentType == "" {
		contentType = contentTypeNDJSON
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(st.StatusCode)

	rc := http.NewResponseController(w)
	var written int64
	for {
		if len(chunk) > 0 {
			n, werr := w.Write(chunk)
			written += int64(n)
			if werr != nil {
				logging.FromContext(r.Context(), rt.logger).Debug("client went away during stream",
					"bytes", written,
				)
				break
			}
			_ = rc.Flush()
		}
		if err != nil {
			break
		}
		chunk, err = st.Next()
	}

	meta.bytes = written
	meta.addDetail("bytes=" + strconv.FormatInt(written, 10))

	if st.StatusCode >= http.StatusBadRequest {
		severity = logging.SeverityError
	}
	rt.finish(meta, st.StatusCode, severity)
}

func (rt *Router) upstreamFailed(w http.ResponseWriter, r *http.Request, meta *RequestMetadata, err error) {
	logging.FromContext(r.Context(), rt.logger).Error("upstream call failed",
		"endpoint", meta.Endpoint,
		"mode", meta.Mode,
		"error", err,
	)

	var tooLarge *upstream.BodyTooLargeError
	if errors.As(err, &tooLarge) {
		meta.addDetail("upstream body too large")
	} else {
		meta.addDetail("upstream unavailable")
	}
	rt.fail(w, meta, HandleError(err))
}

func (rt *Router) badGateway(w http.ResponseWriter, r *http.Request, meta *RequestMetadata, status int, body []byte) {
	if len(body) > maxLoggedUpstreamBody {
		body = body[:maxLoggedUpstreamBody]
	}
	logging.FromContext(r.Context(), rt.logger).Warn("upstream returned server error",
		"endpoint", meta.Endpoint,
		"status", status,
		"body", string(body),
	)
	meta.addDetail(fmt.Sprintf("upstream status %d", status))
	rt.fail(w, meta, types.NewBadGatewayError())
}

// fail writes a synthesized error and records it at ERROR severity.
func (rt *Router) fail(w http.ResponseWriter, meta *RequestMetadata, errResp *types.ErrorResponse) {
	WriteErrorResponse(w, errResp)
	rt.finish(meta, errResp.HTTPStatusCode(), logging.SeverityError)
}

// finish writes the access record and request metrics.
func (rt *Router) finish(meta *RequestMetadata, status int, severity logging.Severity) {
	rt.state.Events.Record(meta.record(status, severity))

	mode := meta.Mode
	if mode == "" {
		mode = "local"
	}
	rt.state.Metrics.RecordRequest(meta.Endpoint, meta.Method, mode, status, time.Since(meta.StartTime), meta.bytes)
}

func (rt *Router) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	meta := newRequestMetadata(r)
	meta.addDetail("method not allowed")
	rt.fail(w, meta, types.NewMethodNotAllowedError())
}

// severityFor returns the log severity of a successful call.
func severityFor(endpoint string) logging.Severity {
	if auth.IsReadOnly(endpoint) {
		return logging.SeverityInfo
	}
	return logging.SeverityError
}
