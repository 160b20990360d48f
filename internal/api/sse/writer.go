// Package sse writes Server-Sent Events to HTTP responses.
package sse

import (
	"fmt"
	"net/http"

	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

// Writer writes Server-Sent Events to an HTTP response.
type Writer struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the event-stream headers and returns a writer for w.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &Writer{
		writer:  w,
		flusher: flusher,
	}, nil
}

// WriteEvent writes one named frame and flushes it.
func (w *Writer) WriteEvent(eventType chatstream.EventType, data []byte) error {
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// Write writes a chat stream event in the named-frame encoding.
func (w *Writer) Write(ev chatstream.Event) error {
	data := []byte(ev.Data)
	if len(data) == 0 {
		data = []byte("null")
	}
	return w.WriteEvent(ev.Type, data)
}

// WriteError writes a terminal error event carrying message.
func (w *Writer) WriteError(message string) error {
	return w.Write(chatstream.ErrorEvent(message))
}

// WriteComment writes a comment line, which clients ignore. Used as a keep-alive.
func (w *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(w.writer, ": %s\n\n", text); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}
	w.flusher.Flush()
	return nil
}
