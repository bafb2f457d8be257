package proxy

import (
	"net"
	"net/http"
	"strings"
	"time"

	"toutjavascript/infollama/pkg/proxy/middleware"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/telemetry/logging"
)

// RequestMetadata carries what the router learns about a request as it
// moves through authorization and the upstream call. It becomes one access
// record and one set of metric samples.
type RequestMetadata struct {
	RequestID    string
	ClientIP     string
	Identity     auth.Identity
	IdentityName string
	Endpoint     string
	Method       string
	Path         string
	Mode         string
	StartTime    time.Time

	details []string
	bytes   int64
}

func newRequestMetadata(r *http.Request) *RequestMetadata {
	id := auth.IdentityFromContext(r.Context())

	start := middleware.GetStartTime(r.Context())
	if start.IsZero() {
		start = time.Now()
	}

	return &RequestMetadata{
		RequestID:    logging.GetRequestID(r.Context()),
		ClientIP:     clientIP(r),
		Identity:     id,
		IdentityName: id.Name,
		Endpoint:     auth.NormalizeEndpoint(r.URL.Path),
		Method:       r.Method,
		Path:         r.URL.Path,
		StartTime:    start,
	}
}

// addDetail appends a fragment to the access-log detail column.
func (m *RequestMetadata) addDetail(s string) {
	if s != "" {
		m.details = append(m.details, s)
	}
}

// Detail returns the detail column.
func (m *RequestMetadata) Detail() string {
	return strings.Join(m.details, " ")
}

func (m *RequestMetadata) record(status int, severity logging.Severity) logging.LogRecord {
	return logging.LogRecord{
		ClientIP:     m.ClientIP,
		IdentityName: m.IdentityName,
		Method:       m.Method,
		Path:         m.Path,
		StatusCode:   status,
		Timestamp:    time.Now(),
		Detail:       m.Detail(),
		Severity:     severity,
		RequestID:    m.RequestID,
	}
}

// clientIP returns the host part of RemoteAddr. When proxy headers are
// trusted, chi's RealIP middleware has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
