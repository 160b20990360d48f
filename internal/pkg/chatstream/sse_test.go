package chatstream_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

func collect(t *testing.T, src *chatstream.SSESource) []chatstream.RawEvent {
	t.Helper()
	var out []chatstream.RawEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSSESource_Frames(t *testing.T) {
	body := strings.Join([]string{
		": keep-alive",
		"event: start",
		"data:",
		"",
		"event: token",
		"data: Hello",
		"",
		"data: {\"event\":\"token\",\"data\":\" there\"}",
		"",
		"event: token",
		"data: line one",
		"data: line two",
		"",
		"id: 7",
		"retry: 1000",
		"",
		"event: end",
		"data: [DONE]",
	}, "\r\n")

	src := chatstream.NewSSESource(io.NopCloser(strings.NewReader(body)))
	events := collect(t, src)

	require.Len(t, events, 5)
	assert.Equal(t, "start", events[0].Name)
	assert.Equal(t, "Hello", string(events[1].Data))
	assert.Equal(t, "", events[2].Name)
	assert.Equal(t, `{"event":"token","data":" there"}`, string(events[2].Data))
	assert.Equal(t, "line one\nline two", string(events[3].Data))
	assert.Equal(t, "end", events[4].Name, "final frame without blank line is still dispatched")
	assert.NoError(t, src.Err())
}

type failingReader struct {
	data string
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func (r *failingReader) Close() error { return nil }

func TestSSESource_ReadError(t *testing.T) {
	src := chatstream.NewSSESource(&failingReader{data: "event: token\ndata: a\n\n"})
	events := collect(t, src)

	require.Len(t, events, 1)
	assert.EqualError(t, src.Err(), "connection reset")
}

func TestSSESource_CloseUnblocksReader(t *testing.T) {
	pr, pw := io.Pipe()
	src := chatstream.NewSSESource(pr)

	go func() {
		_, _ = pw.Write([]byte("event: token\ndata: a\n\n"))
	}()
	select {
	case ev := <-src.Events():
		assert.Equal(t, "a", string(ev.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first event")
	}

	require.NoError(t, src.Close())
	assert.NoError(t, src.Close(), "close is idempotent")

	events := collect(t, src)
	assert.Empty(t, events)
	assert.NoError(t, src.Err(), "errors caused by Close are not reported")
}
