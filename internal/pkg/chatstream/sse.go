package chatstream

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

// maxLineSize bounds a single SSE line; tokens and source documents fit well within it.
const maxLineSize = 1024 * 1024

// SSESource reads frames from a text/event-stream body.
type SSESource struct {
	body   io.ReadCloser
	events chan RawEvent
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

// NewSSESource starts reading body. The events channel is closed when the body
// is exhausted, fails, or the source is closed.
func NewSSESource(body io.ReadCloser) *SSESource {
	s := &SSESource{
		body:   body,
		events: make(chan RawEvent),
		done:   make(chan struct{}),
	}
	go s.read()
	return s
}

// Events returns the frame channel.
func (s *SSESource) Events() <-chan RawEvent {
	return s.events
}

// Err returns the read error, if any, once Events is closed.
// Errors caused by Close are not reported.
func (s *SSESource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops reading and closes the body. It is safe to call more than once.
func (s *SSESource) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		err = s.body.Close()
	})
	return err
}

func (s *SSESource) read() {
	defer close(s.events)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		name    string
		data    bytes.Buffer
		hasData bool
	)
	dispatch := func() bool {
		if !hasData {
			name = ""
			return true
		}
		ev := RawEvent{Name: name, Data: append([]byte(nil), data.Bytes()...)}
		name, hasData = "", false
		data.Reset()
		select {
		case s.events <- ev:
			return true
		case <-s.done:
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			if !dispatch() {
				return
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}

		switch string(field) {
		case "event":
			name = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		}
	}

	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		if !s.closed {
			s.err = err
		}
		s.mu.Unlock()
		return
	}
	// Some producers omit the blank line after the last frame.
	dispatch()
}
