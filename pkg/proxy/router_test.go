package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"toutjavascript/infollama/pkg/config"
	"toutjavascript/infollama/pkg/device"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/telemetry/logging"
	"toutjavascript/infollama/pkg/telemetry/metrics"
	"toutjavascript/infollama/pkg/upstream"
)

const (
	aliceToken = "pro_alice_0001"
	rootToken  = "pro_root_00001"
)

type testProxy struct {
	router   *Router
	log      *bytes.Buffer
	diag     *bytes.Buffer
	calls    atomic.Int64
	lastBody atomic.Value
}

type proxyOptions struct {
	openbar   bool
	verbosity logging.Verbosity
	upstream  http.HandlerFunc
	baseURL   string
	metrics   *metrics.Collector
	maxBody   int64
}

func newTestProxy(t *testing.T, opts proxyOptions) *testProxy {
	t.Helper()

	tp := &testProxy{log: &bytes.Buffer{}, diag: &bytes.Buffer{}}

	handler := opts.upstream
	if handler == nil {
		handler = defaultUpstream
	}

	baseURL := opts.baseURL
	if baseURL == "" {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tp.calls.Add(1)
			body, _ := io.ReadAll(r.Body)
			tp.lastBody.Store(string(body))
			r.Body = io.NopCloser(bytes.NewReader(body))
			handler(w, r)
		}))
		t.Cleanup(server.Close)
		baseURL = server.URL
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := upstream.New(upstream.Options{BaseURL: baseURL, Logger: quiet, MaxBodyBytes: opts.maxBody})
	if err != nil {
		t.Fatalf("upstream.New() error = %v", err)
	}

	verbosity := opts.verbosity
	if verbosity == logging.VerbosityNever {
		verbosity = logging.VerbosityInfo
	}

	cfg := config.Defaults()
	cfg.UpstreamBaseURL = baseURL
	cfg.AnonymousAccess = opts.openbar
	cfg.LogLevel = verbosity.String()
	if opts.metrics != nil {
		cfg.Metrics.Enabled = true
	}

	users := auth.NewUserStore([]auth.Identity{
		{Class: auth.ClassUser, Name: "alice", Token: aliceToken},
		{Class: auth.ClassAdmin, Name: "root", Token: rootToken},
	}, opts.openbar)

	router, err := NewRouter(&State{
		Config:   cfg,
		Users:    users,
		Policy:   auth.NewPolicy(opts.openbar),
		Events:   logging.NewEventLog(tp.log, verbosity, quiet),
		Upstream: client,
		Device: device.NewInventoryFunc(func(ctx context.Context) device.Info {
			return device.Info{Hostname: "box", CPUThreads: 8, Detected: true}
		}),
		Metrics: opts.metrics,
		Version: "test",
		Logger:  slog.New(slog.NewTextHandler(tp.diag, nil)),
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	tp.router = router
	return tp
}

func defaultUpstream(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"models":[{"name":"llama3:8b"}]}`))
	case "/api/version":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"0.5.1"}`))
	case "/api/generate", "/api/chat":
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		w.Write([]byte(`{"response":"Hel","done":false}` + "\n"))
		flusher.Flush()
		w.Write([]byte(`{"response":"lo","done":true}` + "\n"))
		flusher.Flush()
	case "/api/create":
		w.Write([]byte(`{"status":"success"}`))
	case "/api/show":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	case "/api/ps":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[{"name":"llama3:8b","size":5137025024,"expires_at":"2099-01-01T00:00:00Z"}]}`))
	default:
		http.NotFound(w, r)
	}
}

func (tp *testProxy) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.168.1.20:53000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	tp.router.ServeHTTP(w, req)
	return w
}

func (tp *testProxy) logLines() []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(tp.log.Bytes()))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestRouter_AnonymousCreateForbidden(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	w := tp.do(http.MethodPost, "/api/create", "", `{"model":"mine","from":"llama3"}`)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"forbidden"}` {
		t.Errorf("body = %s", got)
	}
	if tp.calls.Load() != 0 {
		t.Error("upstream must not be called on rejection")
	}

	lines := tp.logLines()
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "192.168.1.20 - anonymous [") {
		t.Errorf("unexpected log prefix: %s", lines[0])
	}
	if !strings.Contains(lines[0], `"POST /api/create HTTP/1.1" 403`) {
		t.Errorf("unexpected log line: %s", lines[0])
	}
}

func TestRouter_UserTagsPassThrough(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	w := tp.do(http.MethodGet, "/api/tags", aliceToken, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != `{"models":[{"name":"llama3:8b"}]}` {
		t.Errorf("body not relayed verbatim: %s", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}

	lines := tp.logLines()
	if len(lines) != 1 || !strings.Contains(lines[0], " - alice [") || !strings.Contains(lines[0], `"GET /api/tags HTTP/1.1" 200`) {
		t.Errorf("unexpected log: %v", lines)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantBody   string
		wantDetail string
	}{
		{
			name:       "missing stream key streams",
			body:       `{"model":"llama3","prompt":"Hello"}`,
			wantBody:   "{\"response\":\"Hel\",\"done\":false}\n{\"response\":\"lo\",\"done\":true}\n",
			wantDetail: "streamed model=llama3",
		},
		{
			name:       "stream true streams",
			body:       `{"model":"llama3","prompt":"Hello","stream":true}`,
			wantDetail: "streamed",
		},
		{
			name:       "stream false buffers",
			body:       `{"model":"llama3","prompt":"Hello","stream":false}`,
			wantDetail: "buffered model=llama3",
		},
		{
			name:       "stream string is not false",
			body:       `{"model":"llama3","stream":"false"}`,
			wantDetail: "streamed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestProxy(t, proxyOptions{})

			w := tp.do(http.MethodPost, "/api/generate", aliceToken, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if got := tp.lastBody.Load(); got != tt.body {
				t.Errorf("upstream received %q, want the original body", got)
			}

			lines := tp.logLines()
			if len(lines) != 1 || !strings.Contains(lines[0], "\t"+tt.wantDetail) {
				t.Errorf("expected detail %q in %v", tt.wantDetail, lines)
			}
		})
	}
}

func TestRouter_StreamFlushesChunks(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	w := tp.do(http.MethodPost, "/api/chat", aliceToken, `{"model":"llama3","messages":[{"role":"user","content":"hi"}]}`)

	if !w.Flushed {
		t.Error("expected streamed response to be flushed")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(tp.logLines()[0], "bytes=62") {
		t.Errorf("expected byte count in detail: %v", tp.logLines())
	}
}

func TestRouter_MalformedBody(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	for _, body := range []string{`{"model":`, `[1,2]`, `not json`} {
		w := tp.do(http.MethodPost, "/api/generate", aliceToken, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	if tp.calls.Load() != 0 {
		t.Error("upstream must not be called for malformed bodies")
	}
}

func TestRouter_UpstreamStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		handler    http.HandlerFunc
		wantStatus int
		notInBody  string
	}{
		{
			name:   "buffered 5xx becomes 502",
			method: http.MethodGet,
			path:   "/api/tags",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "secret stack trace", http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusBadGateway,
			notInBody:  "secret",
		},
		{
			name:   "streamed 5xx becomes 502",
			method: http.MethodPost,
			path:   "/api/generate",
			body:   `{"model":"x"}`,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "cuda out of memory", http.StatusInternalServerError)
			},
			wantStatus: http.StatusBadGateway,
			notInBody:  "cuda",
		},
		{
			name:       "4xx relayed",
			method:     http.MethodPost,
			path:       "/api/show",
			body:       `{"model":"nope"}`,
			handler:    defaultUpstream,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestProxy(t, proxyOptions{upstream: tt.handler})

			w := tp.do(tt.method, tt.path, aliceToken, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.notInBody != "" && strings.Contains(w.Body.String(), tt.notInBody) {
				t.Errorf("upstream text leaked: %s", w.Body.String())
			}
		})
	}
}

func TestRouter_UpstreamUnavailable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	baseURL := dead.URL
	dead.Close()

	tp := newTestProxy(t, proxyOptions{baseURL: baseURL})

	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPost, `{"model":"x","stream":false}`},
		{http.MethodPost, `{"model":"x"}`},
	} {
		w := tp.do(tc.method, "/api/show", aliceToken, tc.body)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: status = %d, want 500", tc.method, tc.body, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "upstream_unavailable" {
			t.Errorf("unexpected body %s", w.Body.String())
		}
	}
}

func TestRouter_StreamInterruptedBeforeData(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{upstream: func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/x-ndjson\r\nTransfer-Encoding: chunked\r\n\r\n")
		buf.Flush()
		conn.Close()
	}})

	w := tp.do(http.MethodPost, "/api/generate", aliceToken, `{"model":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRouter_Methods(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions} {
		w := tp.do(method, "/api/tags", rootToken, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, w.Code)
		}
	}
	if tp.calls.Load() != 0 {
		t.Error("upstream must not be called for unsupported methods")
	}
}

func TestRouter_UnknownEndpoint(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	w := tp.do(http.MethodGet, "/api/secret", rootToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if !strings.Contains(tp.logLines()[0], "unknown endpoint") {
		t.Errorf("expected reason in detail: %v", tp.logLines())
	}
}

func TestRouter_Openbar(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{openbar: true})

	w := tp.do(http.MethodPost, "/api/create", "", `{"model":"mine","stream":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(tp.logLines()[0], " - openbar [") {
		t.Errorf("expected openbar identity in log: %v", tp.logLines())
	}
}

func TestRouter_Severity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity logging.Verbosity
		method    string
		path      string
		token     string
		body      string
		wantLines int
	}{
		{"read-only logged at INFO", logging.VerbosityInfo, http.MethodGet, "/api/tags", aliceToken, "", 1},
		{"read-only skipped at ERROR", logging.VerbosityError, http.MethodGet, "/api/tags", aliceToken, "", 0},
		{"generation logged at ERROR", logging.VerbosityError, http.MethodPost, "/api/generate", aliceToken, `{"stream":false}`, 1},
		{"rejection logged at ERROR", logging.VerbosityError, http.MethodPost, "/api/create", "", `{}`, 1},
		{"robots skipped at INFO", logging.VerbosityInfo, http.MethodGet, "/robots.txt", "", "", 0},
		{"robots logged at ALL", logging.VerbosityAll, http.MethodGet, "/robots.txt", "", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestProxy(t, proxyOptions{verbosity: tt.verbosity})
			tp.do(tt.method, tt.path, tt.token, tt.body)
			if got := len(tp.logLines()); got != tt.wantLines {
				t.Errorf("log lines = %d, want %d", got, tt.wantLines)
			}
		})
	}
}

func TestRouter_PromptExcerptLogged(t *testing.T) {
	body := `{"model":"llama3","messages":[{"role":"system","content":"be nice"},{"role":"user","content":"What is\nthe capital of France?"}],"stream":false}`

	tp := newTestProxy(t, proxyOptions{verbosity: logging.VerbosityPrompt})
	tp.do(http.MethodPost, "/api/chat", aliceToken, body)
	if line := tp.logLines()[0]; !strings.Contains(line, `prompt="What is the capital of France?"`) {
		t.Errorf("expected prompt excerpt: %s", line)
	}

	tp = newTestProxy(t, proxyOptions{verbosity: logging.VerbosityInfo})
	tp.do(http.MethodPost, "/api/chat", aliceToken, body)
	if line := tp.logLines()[0]; strings.Contains(line, "prompt=") {
		t.Errorf("prompt must not be logged below PROMPT: %s", line)
	}
}

func TestRouter_Metrics(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Path: "/metrics", Namespace: "test"}, prometheus.NewRegistry())
	tp := newTestProxy(t, proxyOptions{metrics: collector})

	tp.do(http.MethodGet, "/api/tags", aliceToken, "")
	tp.do(http.MethodPost, "/api/create", "", `{}`)

	w := tp.do(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`test_requests_total{endpoint="api/tags",method="GET",status="200"} 1`,
		`test_access_decisions_total{class="anonymous",decision="deny"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNewRouter_RequiresState(t *testing.T) {
	if _, err := NewRouter(nil); err == nil {
		t.Error("expected error for nil state")
	}
	if _, err := NewRouter(&State{}); err == nil {
		t.Error("expected error for empty state")
	}
}

func TestRouter_LocalRoutesNotForwarded(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	for _, path := range []string{"/info", "/info/device", "/info/ps", "/favicon.ico", "/robots.txt"} {
		w := tp.do(http.MethodPost, path, rootToken, `{"model":"x"}`)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: status = %d, want 405", path, w.Code)
		}
	}
	if tp.calls.Load() != 0 {
		t.Errorf("local routes reached the upstream %d times", tp.calls.Load())
	}

	for _, line := range tp.logLines() {
		if !strings.Contains(line, "\" 405\tmethod not allowed") {
			t.Errorf("unexpected log line: %s", line)
		}
	}
}

func TestRouter_UnknownInfoPathForbidden(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{})

	w := tp.do(http.MethodGet, "/info/secret", rootToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if tp.calls.Load() != 0 {
		t.Error("upstream must not be called for unknown endpoints")
	}
}

func TestRouter_UpstreamBodyTooLarge(t *testing.T) {
	tp := newTestProxy(t, proxyOptions{maxBody: 8})

	w := tp.do(http.MethodGet, "/api/tags", aliceToken, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if strings.Contains(w.Body.String(), "llama3") {
		t.Errorf("truncated upstream body relayed: %s", w.Body.String())
	}
	if !strings.Contains(tp.logLines()[0], "upstream body too large") {
		t.Errorf("expected reason in detail: %v", tp.logLines())
	}
}

func TestRouter_DiagnosticsCarryRequestFields(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	baseURL := dead.URL
	dead.Close()

	tp := newTestProxy(t, proxyOptions{baseURL: baseURL})

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	req = req.WithContext(logging.WithRequestID(req.Context(), "req-7"))
	tp.router.ServeHTTP(httptest.NewRecorder(), req)

	out := tp.diag.String()
	for _, want := range []string{"upstream call failed", "request_id=req-7", "identity=alice"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostic log missing %q:\n%s", want, out)
		}
	}
}
