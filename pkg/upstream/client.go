package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"toutjavascript/infollama/pkg/telemetry/metrics"
	"toutjavascript/infollama/pkg/telemetry/tracing"
)

// MaxBufferedBody caps the size of a buffered upstream body.
const MaxBufferedBody = 64 << 20

// Options configures a Client.
type Options struct {
	// BaseURL is the normalized upstream base URL (scheme, no trailing slash).
	BaseURL string

	// Timeout bounds buffered calls and probes, and the wait for stream
	// response headers. Zero means no timeout.
	Timeout time.Duration

	// Tracer wraps each call in a span. Optional.
	Tracer *tracing.Tracer

	// Metrics records latency and errors. Optional.
	Metrics *metrics.Collector

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// MaxBodyBytes caps a buffered upstream body. Defaults to MaxBufferedBody.
	MaxBodyBytes int64

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client talks to the model server. It performs no retries and is safe for
// concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	maxBody int64

	client       *http.Client
	streamClient *http.Client

	tracer  *tracing.Tracer
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base URL %q", opts.BaseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NewNoop()
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = MaxBufferedBody
	}

	transport := opts.Transport
	streamTransport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 16
		transport = t

		st := t.Clone()
		st.ResponseHeaderTimeout = opts.Timeout
		streamTransport = st
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		timeout:      opts.Timeout,
		maxBody:      maxBody,
		client:       &http.Client{Transport: transport},
		streamClient: &http.Client{Transport: streamTransport},
		tracer:       tracer,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "upstream"),
	}, nil
}

// BaseURL returns the upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a buffered GET request.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	return c.doBuffered(ctx, http.MethodGet, endpoint, nil, query)
}

// PostBuffered performs a POST request and reads the whole response.
// body is forwarded verbatim.
func (c *Client) PostBuffered(ctx context.Context, endpoint string, body []byte, query url.Values) (*Response, error) {
	return c.doBuffered(ctx, http.MethodPost, endpoint, body, query)
}

// Stream performs a POST request and returns the response as a chunk
// sequence. The caller must Close the stream. Cancelling ctx aborts the
// upstream read.
func (c *Client) Stream(ctx context.Context, endpoint string, body []byte, query url.Values) (*Stream, error) {
	target := c.endpointURL(endpoint, query)

	ctx, span := c.tracer.Start(ctx, "upstream.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.UpstreamAttributes(http.MethodPost, target, endpoint, "streamed")...),
	)

	req, err := c.newRequest(ctx, http.MethodPost, target, body)
	if err != nil {
		span.End()
		return nil, err
	}

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		span.End()
		return nil, c.unavailable(endpoint, err)
	}

	c.metrics.RecordUpstreamLatency(endpoint, time.Since(start))
	tracing.SetStatus(span, resp.StatusCode)
	if resp.StatusCode >= 500 {
		c.metrics.RecordUpstreamError("server_error")
	}

	return newStream(ctx, endpoint, resp, span, c.metrics, c.logger), nil
}

// CheckHealth reports whether the upstream answers its root endpoint with 200.
func (c *Client) CheckHealth(ctx context.Context) bool {
	resp, err := c.Get(ctx, "", nil)
	healthy := err == nil && resp.StatusCode == http.StatusOK
	c.metrics.UpdateUpstreamHealth(healthy)
	return healthy
}

// Version returns the upstream version, or "" when it cannot be determined.
func (c *Client) Version(ctx context.Context) string {
	resp, err := c.Get(ctx, "api/version", nil)
	if err != nil || resp.StatusCode != http.StatusOK || resp.Kind != KindJSON {
		return ""
	}

	var v struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return ""
	}
	return v.Version
}

func (c *Client) doBuffered(ctx context.Context, method, endpoint string, body []byte, query url.Values) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.endpointURL(endpoint, query)

	ctx, span := c.tracer.Start(ctx, "upstream.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.UpstreamAttributes(method, target, endpoint, "buffered")...),
	)
	defer span.End()

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, c.unavailable(endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstreamLatency(endpoint, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, c.unavailable(endpoint, err)
	}
	if int64(len(data)) > c.maxBody {
		err := &BodyTooLargeError{Endpoint: endpoint, Limit: c.maxBody}
		tracing.RecordError(span, err)
		c.metrics.RecordUpstreamError("body_too_large")
		return nil, err
	}

	tracing.SetStatus(span, resp.StatusCode)
	if resp.StatusCode >= 500 {
		c.metrics.RecordUpstreamError("server_error")
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
		Kind:        DetectKind(data),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.Inject(ctx, req.Header)

	c.logger.Debug("sending request to upstream", "method", method, "url", target)

	return req, nil
}

func (c *Client) unavailable(endpoint string, err error) error {
	c.metrics.RecordUpstreamError("unavailable")
	c.logger.Warn("upstream unavailable", "endpoint", endpoint, "error", err)
	return &UnavailableError{Endpoint: endpoint, Cause: err}
}

func (c *Client) endpointURL(endpoint string, query url.Values) string {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}
