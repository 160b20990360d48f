package chatstream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

// chanSource is an in-memory Source.
type chanSource struct {
	events chan chatstream.RawEvent
	closed chan struct{}
	once   sync.Once
	closes atomic.Int32
	err    error
}

// newScriptedSource returns a source that yields frames and then ends.
func newScriptedSource(err error, frames ...chatstream.RawEvent) *chanSource {
	s := &chanSource{
		events: make(chan chatstream.RawEvent, len(frames)),
		closed: make(chan struct{}),
		err:    err,
	}
	for _, f := range frames {
		s.events <- f
	}
	close(s.events)
	return s
}

// newLiveSource returns a source fed by push.
func newLiveSource() *chanSource {
	return &chanSource{
		events: make(chan chatstream.RawEvent),
		closed: make(chan struct{}),
	}
}

// push blocks until the consumer reads the frame, or reports false once the source is closed.
func (s *chanSource) push(f chatstream.RawEvent) bool {
	select {
	case s.events <- f:
		return true
	case <-s.closed:
		return false
	case <-time.After(2 * time.Second):
		return false
	}
}

func (s *chanSource) Events() <-chan chatstream.RawEvent { return s.events }
func (s *chanSource) Err() error                         { return s.err }

func (s *chanSource) Close() error {
	s.closes.Add(1)
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *chanSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func frame(name, data string) chatstream.RawEvent {
	return chatstream.RawEvent{Name: name, Data: []byte(data)}
}

// recorder logs every callback in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.snapshot() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *recorder) callbacks() chatstream.Callbacks {
	return chatstream.Callbacks{
		OnStart: func() { r.add("start") },
		OnToken: func(s string) { r.add("token:" + s) },
		OnMetadata: func(m map[string]interface{}) {
			r.add(fmt.Sprintf("metadata:%v", m["chatId"]))
		},
		OnSourceDocuments: func(docs []models.SourceDocument) {
			r.add(fmt.Sprintf("sources:%d", len(docs)))
		},
		OnUsedTools: func(tools []models.UsedTool) {
			r.add(fmt.Sprintf("tools:%d", len(tools)))
		},
		OnError: func(msg string) { r.add("error:" + msg) },
		OnEnd:   func() { r.add("end") },
	}
}

func newTestConsumer(opener chatstream.Opener) *chatstream.Consumer {
	return chatstream.NewConsumer(opener, chatstream.WithLogger(zerolog.Nop()))
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestConsumer_DeliversEventsInOrder(t *testing.T) {
	src := newScriptedSource(nil,
		frame("start", ""),
		frame("token", "Hel"),
		frame("", `{"event":"token","data":"lo"}`),
		frame("metadata", `{"chatId":"c1"}`),
		frame("sourceDocuments", `[{"pageContent":"a"},{"pageContent":"b"}]`),
		frame("usedTools", `[{"tool":"search"}]`),
		frame("end", "[DONE]"),
	)
	c := newTestConsumer(nil)
	rec := &recorder{}

	require.NoError(t, c.Consume(src, rec.callbacks()))

	assert.Equal(t, []string{
		"start", "token:Hel", "token:lo", "metadata:c1", "sources:2", "tools:1", "end",
	}, rec.snapshot())
	assert.Equal(t, "Hello", c.Message())
	assert.Equal(t, chatstream.StateClosed, c.State())
	assert.False(t, c.Busy())
	assert.True(t, src.isClosed(), "source is torn down after the terminal event")
}

func TestConsumer_ExactlyOneTerminal(t *testing.T) {
	tests := []struct {
		name   string
		frames []chatstream.RawEvent
		want   []string
	}{
		{
			name:   "end then more events",
			frames: []chatstream.RawEvent{frame("start", ""), frame("token", "a"), frame("end", ""), frame("token", "b"), frame("error", "late")},
			want:   []string{"start", "token:a", "end"},
		},
		{
			name:   "error then more events",
			frames: []chatstream.RawEvent{frame("start", ""), frame("error", "model overloaded"), frame("end", ""), frame("token", "b")},
			want:   []string{"start", "error:model overloaded"},
		},
		{
			name:   "eof without terminal",
			frames: []chatstream.RawEvent{frame("start", ""), frame("token", "partial")},
			want:   []string{"start", "token:partial", "error:" + chatstream.ErrIncomplete},
		},
		{
			name:   "empty stream",
			frames: nil,
			want:   []string{"error:" + chatstream.ErrIncomplete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer(nil)
			rec := &recorder{}

			require.NoError(t, c.Consume(newScriptedSource(nil, tt.frames...), rec.callbacks()))

			assert.Equal(t, tt.want, rec.snapshot())
			assert.Equal(t, 1, rec.count("end")+rec.count("error:"))
			assert.False(t, c.Busy())
		})
	}
}

func TestConsumer_MessageFrozenAtTerminal(t *testing.T) {
	c := newTestConsumer(nil)
	src := newScriptedSource(nil, frame("token", "a"), frame("token", "b"), frame("end", ""), frame("token", "c"))

	require.NoError(t, c.Consume(src, chatstream.Callbacks{}))
	assert.Equal(t, "ab", c.Message())
}

func TestConsumer_TransportError(t *testing.T) {
	c := newTestConsumer(nil)
	rec := &recorder{}
	src := newScriptedSource(errors.New("connection reset"), frame("token", "a"))

	require.NoError(t, c.Consume(src, rec.callbacks()))

	assert.Equal(t, []string{"token:a", "error:stream interrupted: connection reset"}, rec.snapshot())
}

func TestConsumer_ImplicitStart(t *testing.T) {
	c := newTestConsumer(nil)
	src := newLiveSource()
	rec := &recorder{}
	done := make(chan error, 1)

	go func() { done <- c.Consume(src, rec.callbacks()) }()

	require.True(t, src.push(frame("token", "Hi")))
	require.True(t, src.push(frame("start", "")))
	require.True(t, src.push(frame("start", "")))
	require.True(t, src.push(frame("end", "")))
	require.NoError(t, <-done)

	assert.Equal(t, []string{"token:Hi", "end"}, rec.snapshot(), "start after an implicit start is ignored")
}

func TestConsumer_DuplicateStartIgnored(t *testing.T) {
	c := newTestConsumer(nil)
	rec := &recorder{}
	src := newScriptedSource(nil, frame("start", ""), frame("start", ""), frame("token", "x"), frame("end", ""))

	require.NoError(t, c.Consume(src, rec.callbacks()))
	assert.Equal(t, 1, rec.count("start"))
}

func TestConsumer_StateTransitions(t *testing.T) {
	c := newTestConsumer(nil)
	assert.Equal(t, chatstream.StateIdle, c.State())

	src := newLiveSource()
	states := make(chan chatstream.State, 4)
	cb := chatstream.Callbacks{
		OnStart: func() { states <- c.State() },
		OnToken: func(string) { states <- c.State() },
	}
	done := make(chan error, 1)
	go func() { done <- c.Consume(src, cb) }()

	require.Eventually(t, c.Busy, time.Second, 5*time.Millisecond)
	assert.Equal(t, chatstream.StateAwaitingStart, c.State())

	require.True(t, src.push(frame("start", "")))
	assert.Equal(t, chatstream.StateStreaming, <-states)
	require.True(t, src.push(frame("token", "a")))
	assert.Equal(t, chatstream.StateStreaming, <-states)
	require.True(t, src.push(frame("end", "")))
	require.NoError(t, <-done)

	assert.Equal(t, chatstream.StateClosed, c.State())
}

func TestConsumer_MalformedEventsSkipped(t *testing.T) {
	var buf bytes.Buffer
	c := chatstream.NewConsumer(nil, chatstream.WithLogger(zerolog.New(&buf)))
	rec := &recorder{}
	src := newScriptedSource(nil,
		frame("start", ""),
		frame("token", "a"),
		frame("", "{not json"),
		frame("metadata", "[1,2]"),
		frame("token", "b"),
		frame("sourceDocuments", `{"pageContent":"not a list"}`),
		frame("token", "c"),
		frame("mystery", `{}`),
		frame("end", ""),
	)

	require.NoError(t, c.Consume(src, rec.callbacks()))

	assert.Equal(t, []string{"start", "token:a", "token:b", "token:c", "end"}, rec.snapshot())
	assert.Equal(t, "abc", c.Message())
	assert.Equal(t, chatstream.StateClosed, c.State())
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "skipping malformed stream event")
}

func TestConsumer_Busy(t *testing.T) {
	c := newTestConsumer(nil)
	first := newLiveSource()
	done := make(chan error, 1)

	go func() { done <- c.Consume(first, chatstream.Callbacks{}) }()
	require.True(t, first.push(frame("start", "")))
	require.True(t, c.Busy())

	second := newScriptedSource(nil, frame("end", ""))
	err := c.Consume(second, chatstream.Callbacks{})
	assert.ErrorIs(t, err, chatstream.ErrBusy)
	assert.True(t, second.isClosed())

	require.True(t, first.push(frame("end", "")))
	require.NoError(t, <-done)
	assert.False(t, c.Busy())

	rec := &recorder{}
	require.NoError(t, c.Consume(newScriptedSource(nil, frame("token", "next"), frame("end", "")), rec.callbacks()))
	assert.Equal(t, []string{"token:next", "end"}, rec.snapshot())
	assert.Equal(t, "next", c.Message())
}

func TestConsumer_CleanupMidStream(t *testing.T) {
	c := newTestConsumer(nil)
	src := newLiveSource()
	rec := &recorder{}
	gotToken := make(chan struct{}, 1)

	cb := rec.callbacks()
	cb.OnToken = func(s string) {
		rec.add("token:" + s)
		select {
		case gotToken <- struct{}{}:
		default:
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.Consume(src, cb) }()

	require.True(t, src.push(frame("start", "")))
	require.True(t, src.push(frame("token", "a")))
	waitFor(t, gotToken)

	c.Cleanup()
	before := rec.snapshot()

	assert.False(t, c.Busy())
	assert.True(t, src.isClosed())
	assert.False(t, src.push(frame("token", "b")))
	assert.False(t, src.push(frame("end", "")))
	require.NoError(t, <-done)

	assert.Equal(t, before, rec.snapshot(), "no callback after cleanup returns")
	assert.Zero(t, rec.count("error:"), "cleanup never reports an error")
	assert.Equal(t, "a", c.Message())

	c.Cleanup()
	c.Cleanup()
}

func TestConsumer_CleanupFromCallback(t *testing.T) {
	c := newTestConsumer(nil)
	rec := &recorder{}
	src := newScriptedSource(nil, frame("start", ""), frame("token", "a"), frame("token", "b"), frame("end", ""))

	cb := rec.callbacks()
	cb.OnToken = func(s string) {
		rec.add("token:" + s)
		c.Cleanup()
	}

	finished := make(chan error, 1)
	go func() { finished <- c.Consume(src, cb) }()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup from inside a callback deadlocked")
	}

	assert.Equal(t, []string{"start", "token:a"}, rec.snapshot())
	assert.False(t, c.Busy())
	assert.True(t, src.isClosed())
}

func TestConsumer_CleanupFromTerminalCallback(t *testing.T) {
	c := newTestConsumer(nil)
	src := newScriptedSource(nil, frame("end", ""))
	ended := 0

	require.NoError(t, c.Consume(src, chatstream.Callbacks{OnEnd: func() {
		ended++
		c.Cleanup()
	}}))

	assert.Equal(t, 1, ended)
	assert.False(t, c.Busy())
}

func TestConsumer_CleanupWhenIdle(t *testing.T) {
	c := newTestConsumer(nil)
	c.Cleanup()
	assert.False(t, c.Busy())
	assert.Equal(t, chatstream.StateIdle, c.State())
}

func writeSSE(w http.ResponseWriter, frames ...string) {
	for _, f := range frames {
		_, _ = fmt.Fprint(w, f)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func TestConsumer_StreamOverHTTP(t *testing.T) {
	var got models.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, chatstream.DefaultStreamPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		if cookie, err := r.Cookie("cg-access-token"); assert.NoError(t, err) {
			assert.Equal(t, "token", cookie.Value)
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w,
			"event: start\ndata: \n\n",
			"event: token\ndata: \"Hello\"\n\n",
			"event: token\ndata: \" world\"\n\n",
			"event: end\ndata: \n\n",
		)
	}))
	defer server.Close()

	client, err := chatstream.NewClient(&chatstream.ClientConfig{
		BaseURL: server.URL,
		Cookies: []*http.Cookie{{Name: "cg-access-token", Value: "token"}},
	})
	require.NoError(t, err)

	c := newTestConsumer(client)
	rec := &recorder{}
	require.NoError(t, c.Ask(context.Background(), "What is Go?", rec.callbacks()))

	assert.Equal(t, "What is Go?", got.Question)
	assert.True(t, got.Streaming)
	assert.Equal(t, []string{"start", "token:Hello", "token: world", "end"}, rec.snapshot())
	assert.Equal(t, "Hello world", c.Message())
}

func TestConsumer_StreamRejected(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "redirect to sign-in",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/auth/signin?redirect=%2Fapi%2Fv1%2Fchat%2Fstream", http.StatusTemporaryRedirect)
			},
			wantMsg: "sign in required",
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantMsg: "too many requests, try again shortly",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream unavailable", http.StatusBadGateway)
			},
			wantMsg: "request rejected (502): upstream unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			client, err := chatstream.NewClient(&chatstream.ClientConfig{BaseURL: server.URL})
			require.NoError(t, err)

			c := newTestConsumer(client)
			rec := &recorder{}
			require.NoError(t, c.Ask(context.Background(), "hi", rec.callbacks()))

			assert.Equal(t, []string{"error:" + tt.wantMsg}, rec.snapshot())
			assert.Equal(t, int32(1), calls.Load(), "no retry")
			assert.False(t, c.Busy())
		})
	}
}

func TestConsumer_StreamUnreachable(t *testing.T) {
	client, err := chatstream.NewClient(&chatstream.ClientConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	c := newTestConsumer(client)
	rec := &recorder{}
	require.NoError(t, c.Ask(context.Background(), "hi", rec.callbacks()))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "error:request failed")
	assert.False(t, c.Busy())
}

func TestConsumer_CleanupDuringHTTPStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w, "event: start\ndata: \n\n", "event: token\ndata: partial\n\n")
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := chatstream.NewClient(&chatstream.ClientConfig{BaseURL: server.URL})
	require.NoError(t, err)

	c := newTestConsumer(client)
	rec := &recorder{}
	gotToken := make(chan struct{}, 1)
	cb := rec.callbacks()
	cb.OnToken = func(s string) {
		rec.add("token:" + s)
		gotToken <- struct{}{}
	}

	done := make(chan error, 1)
	go func() { done <- c.Ask(context.Background(), "hi", cb) }()

	waitFor(t, gotToken)
	c.Cleanup()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cleanup")
	}
	assert.Equal(t, []string{"start", "token:partial"}, rec.snapshot())
	assert.False(t, c.Busy())
}

// ctxOpener hands out a scripted source and keeps the context it was opened with.
type ctxOpener struct {
	ctx context.Context
	err error
}

func (o *ctxOpener) Open(ctx context.Context, _ *models.ChatRequest) (chatstream.Source, error) {
	o.ctx = ctx
	if o.err != nil {
		return nil, o.err
	}
	return newScriptedSource(nil, frame("start", ""), frame("token", "hi"), frame("end", "")), nil
}

func TestConsumer_StreamReleasesContext(t *testing.T) {
	tests := []struct {
		name   string
		opener *ctxOpener
	}{
		{"completed exchange", &ctxOpener{}},
		{"open failure", &ctxOpener{err: errors.New("dial tcp: refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConsumer(tt.opener)
			require.NoError(t, c.Ask(context.Background(), "hi", chatstream.Callbacks{}))

			require.NotNil(t, tt.opener.ctx)
			select {
			case <-tt.opener.ctx.Done():
			default:
				t.Fatal("exchange context still live after Stream returned")
			}
		})
	}
}
