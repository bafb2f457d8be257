package upstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"toutjavascript/infollama/pkg/telemetry/metrics"
	"toutjavascript/infollama/pkg/telemetry/tracing"
)

const streamChunkSize = 32 << 10

// Stream is an in-progress upstream response read chunk by chunk.
// Bytes are returned exactly as received.
type Stream struct {
	StatusCode  int
	ContentType string

	ctx       context.Context
	endpoint  string
	body      io.ReadCloser
	buf       []byte
	pending   error
	final     error
	delivered int64

	span    trace.Span
	metrics *metrics.Collector
	logger  *slog.Logger

	closeOnce sync.Once
}

func newStream(ctx context.Context, endpoint string, resp *http.Response, span trace.Span, m *metrics.Collector, logger *slog.Logger) *Stream {
	return &Stream{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		ctx:         ctx,
		endpoint:    endpoint,
		body:        resp.Body,
		buf:         make([]byte, streamChunkSize),
		span:        span,
		metrics:     m,
		logger:      logger,
	}
}

// Next returns the next chunk. It returns io.EOF when the stream is over.
//
// A read failure after at least one byte has been delivered ends the stream
// with io.EOF; the interruption is only logged. A failure before any byte is
// returned as *UnavailableError.
func (s *Stream) Next() ([]byte, error) {
	if s.final != nil {
		return nil, s.final
	}
	for {
		if s.pending != nil {
			s.final = s.finish(s.pending)
			return nil, s.final
		}

		n, err := s.body.Read(s.buf)
		if err != nil {
			s.pending = err
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			s.delivered += int64(n)
			return chunk, nil
		}
	}
}

// Delivered returns the number of bytes returned by Next so far.
func (s *Stream) Delivered() int64 {
	return s.delivered
}

func (s *Stream) finish(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}

	if s.delivered > 0 {
		if s.ctx.Err() != nil {
			s.logger.Debug("stream cancelled by client", "endpoint", s.endpoint, "bytes", s.delivered)
		} else {
			s.metrics.RecordUpstreamError("stream_interrupted")
			s.logger.Warn("upstream stream interrupted",
				"endpoint", s.endpoint,
				"bytes", s.delivered,
				"error", err,
			)
		}
		return io.EOF
	}

	tracing.RecordError(s.span, err)
	s.metrics.RecordUpstreamError("unavailable")
	return &UnavailableError{Endpoint: s.endpoint, Cause: err}
}

// Close releases the upstream connection and ends the trace span.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		s.span.End()
	})
	return err
}
