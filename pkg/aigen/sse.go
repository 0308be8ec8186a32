package aigen

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Sink receives envelopes in order. An error aborts the stream.
type Sink interface {
	Send(Envelope) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Envelope) error

func (f SinkFunc) Send(e Envelope) error { return f(e) }

// SetSSEHeaders sets the response headers of an event stream.
func SetSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
}

// SSEWriter writes envelopes as server-sent events, one "data:" frame each.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter returns a writer over w. When w is an http.ResponseWriter the
// event stream headers are set and every frame is flushed.
func NewSSEWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if rw, ok := w.(http.ResponseWriter); ok {
		SetSSEHeaders(rw.Header())
	}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

func (s *SSEWriter) Send(e Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("aigen: encode %s envelope: %w", e.Type, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
