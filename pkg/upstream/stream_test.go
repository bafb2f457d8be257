package upstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func readAll(t *testing.T, s *Stream) ([]byte, int) {
	t.Helper()
	var out bytes.Buffer
	chunks := 0
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return out.Bytes(), chunks
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		chunks++
		out.Write(chunk)
	}
}

func TestStream_ByteFidelity(t *testing.T) {
	parts := []string{
		`{"message":{"content":"Hel"},"done":false}` + "\n",
		`{"message":{"content":"lo é"},"done":false}` + "\n",
		`{"done":true}` + "\n",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, p := range parts {
			w.Write([]byte(p))
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, time.Second)
	s, err := c.Stream(context.Background(), "api/chat", []byte(`{"model":"m"}`), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close()

	if s.StatusCode != 200 || s.ContentType != "application/x-ndjson" {
		t.Errorf("unexpected stream head %d %q", s.StatusCode, s.ContentType)
	}

	got, chunks := readAll(t, s)
	want := parts[0] + parts[1] + parts[2]
	if string(got) != want {
		t.Errorf("stream body = %q, want %q", got, want)
	}
	if chunks < 2 {
		t.Errorf("expected at least 2 chunks, got %d", chunks)
	}
	if s.Delivered() != int64(len(want)) {
		t.Errorf("Delivered() = %d, want %d", s.Delivered(), len(want))
	}

	// The end state is sticky.
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestStream_InterruptedAfterDataEndsCleanly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte(`{"partial":`))
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, time.Second)
	s, err := c.Stream(context.Background(), "api/generate", []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close()

	got, _ := readAll(t, s)
	if string(got) != `{"partial":` {
		t.Errorf("got %q", got)
	}
}

func TestStream_InterruptedBeforeData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"))
		conn.Close()
	}()

	c, err := New(Options{BaseURL: "http://" + ln.Addr().String()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	s, err := c.Stream(context.Background(), "api/generate", []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close()

	_, err = s.Next()
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
}

func TestStream_ClientCancel(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, server, time.Second)
	s, err := c.Stream(ctx, "api/chat", []byte(`{}`), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer s.Close()

	if chunk, err := s.Next(); err != nil || string(chunk) != "first" {
		t.Fatalf("first chunk = %q, %v", chunk, err)
	}
	<-started
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.Next()
		done <- err
	}()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("Next() after cancel = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not abort the upstream read")
	}
}
