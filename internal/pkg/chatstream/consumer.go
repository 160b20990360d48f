package chatstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// ErrBusy is returned when an exchange is started while another is in flight.
var ErrBusy = errors.New("an exchange is already in flight")

// ErrIncomplete is the message delivered when the stream ends without a terminal event.
const ErrIncomplete = "stream closed before completion"

// Source is the unidirectional event channel of one exchange.
type Source interface {
	// Events delivers frames in arrival order and is closed when the stream ends.
	Events() <-chan RawEvent
	// Err reports why Events was closed; nil means the stream ended normally.
	Err() error
	// Close releases the underlying transport.
	Close() error
}

// Opener starts an exchange and returns its event source.
type Opener interface {
	Open(ctx context.Context, req *models.ChatRequest) (Source, error)
}

// Callbacks receive the events of one exchange. Nil callbacks are skipped.
// Callbacks run on the goroutine that called Stream or Consume.
type Callbacks struct {
	OnStart           func()
	OnToken           func(token string)
	OnMetadata        func(metadata map[string]interface{})
	OnSourceDocuments func(docs []models.SourceDocument)
	OnUsedTools       func(tools []models.UsedTool)
	OnError           func(message string)
	OnEnd             func()
}

// State is the consumer's position in an exchange.
type State int32

const (
	StateIdle State = iota
	StateAwaitingStart
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting-start"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Consumer drives one exchange at a time through its callbacks.
type Consumer struct {
	opener Opener
	logger zerolog.Logger

	mu      sync.Mutex
	current *exchange
	state   State
	message strings.Builder
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithLogger replaces the global logger.
func WithLogger(l zerolog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

// NewConsumer creates a consumer. opener may be nil when only Consume is used.
func NewConsumer(opener Opener, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		opener: opener,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// exchange is the per-request state. deliverMu is held for the whole of a
// callback so Cleanup can wait for an in-progress delivery to finish.
type exchange struct {
	callbacks Callbacks
	done      chan struct{}
	closeOnce sync.Once

	closed     atomic.Bool
	inCallback atomic.Bool
	deliverMu  sync.Mutex

	mu     sync.Mutex
	source Source
	cancel context.CancelFunc
}

// shutdown marks the exchange closed and releases its transport.
func (ex *exchange) shutdown() {
	ex.closeOnce.Do(func() {
		ex.mu.Lock()
		ex.closed.Store(true)
		source, cancel := ex.source, ex.cancel
		ex.mu.Unlock()

		close(ex.done)
		if cancel != nil {
			cancel()
		}
		if source != nil {
			_ = source.Close()
		}
	})
}

// attach binds source to the exchange, closing it straight away if the
// exchange was cleaned up while the request was in flight.
func (ex *exchange) attach(source Source) bool {
	ex.mu.Lock()
	if ex.closed.Load() {
		ex.mu.Unlock()
		_ = source.Close()
		return false
	}
	ex.source = source
	ex.mu.Unlock()
	return true
}

// Ask streams a single question with no history.
func (c *Consumer) Ask(ctx context.Context, question string, cb Callbacks) error {
	return c.Stream(ctx, &models.ChatRequest{Question: question}, cb)
}

// Stream opens an exchange and blocks until it reaches the closed state.
// Request failures are reported through OnError; the only returned error is ErrBusy.
func (c *Consumer) Stream(ctx context.Context, req *models.ChatRequest, cb Callbacks) error {
	if c.opener == nil {
		return errors.New("consumer has no opener")
	}
	ex, err := c.begin(cb)
	if err != nil {
		return err
	}
	defer c.finish(ex)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ex.mu.Lock()
	ex.cancel = cancel
	ex.mu.Unlock()

	streamReq := *req
	streamReq.Streaming = true
	source, err := c.opener.Open(ctx, &streamReq)
	if err != nil {
		c.fail(ex, requestErrorMessage(err))
		return nil
	}
	if !ex.attach(source) {
		return nil
	}

	c.run(ex)
	return nil
}

// Consume drives an already-open source and blocks until it reaches the closed state.
func (c *Consumer) Consume(source Source, cb Callbacks) error {
	ex, err := c.begin(cb)
	if err != nil {
		_ = source.Close()
		return err
	}
	defer c.finish(ex)

	if !ex.attach(source) {
		return nil
	}
	c.run(ex)
	return nil
}

// Cleanup tears down the in-flight exchange, if any. It is idempotent and may be
// called from any goroutine, including from inside a callback. No callback
// starts after it returns and it never reports an error to the callbacks.
func (c *Consumer) Cleanup() {
	c.mu.Lock()
	ex := c.current
	c.current = nil
	if ex != nil {
		c.state = StateClosed
	}
	c.mu.Unlock()

	if ex == nil {
		return
	}
	ex.shutdown()

	// Waiting from inside a callback would deadlock on our own delivery.
	if !ex.inCallback.Load() {
		ex.deliverMu.Lock()
		ex.deliverMu.Unlock() //nolint:staticcheck
	}
}

// Busy reports whether an exchange is in flight.
func (c *Consumer) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// State returns the current state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the text assembled from the tokens of the latest exchange.
func (c *Consumer) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message.String()
}

func (c *Consumer) begin(cb Callbacks) (*exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, ErrBusy
	}
	ex := &exchange{
		callbacks: cb,
		done:      make(chan struct{}),
	}
	c.current = ex
	c.state = StateAwaitingStart
	c.message.Reset()
	return ex, nil
}

// finish closes ex and clears busy unless a new exchange already replaced it.
func (c *Consumer) finish(ex *exchange) {
	ex.shutdown()

	c.mu.Lock()
	if c.current == ex {
		c.current = nil
		c.state = StateClosed
	}
	c.mu.Unlock()
}

func (c *Consumer) run(ex *exchange) {
	events := ex.source.Events()
	for {
		select {
		case <-ex.done:
			return
		case raw, ok := <-events:
			if !ok {
				if err := ex.source.Err(); err != nil {
					c.fail(ex, "stream interrupted: "+err.Error())
				} else {
					c.fail(ex, ErrIncomplete)
				}
				return
			}
			c.handle(ex, raw)
			if ex.closed.Load() {
				return
			}
		}
	}
}

func (c *Consumer) handle(ex *exchange, raw RawEvent) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		c.malformed(raw.Name, err)
		return
	}
	cb := ex.callbacks

	switch ev.Type {
	case EventStart:
		if c.transition(ex, StateAwaitingStart, StateStreaming) {
			c.deliver(ex, false, func() {
				if cb.OnStart != nil {
					cb.OnStart()
				}
			})
		}

	case EventToken:
		text, err := ev.Text()
		if err != nil {
			c.malformed(raw.Name, err)
			return
		}
		// A token before start is an implicit start.
		c.transition(ex, StateAwaitingStart, StateStreaming)
		c.deliver(ex, false, func() {
			c.appendToken(ex, text)
			if cb.OnToken != nil {
				cb.OnToken(text)
			}
		})

	case EventMetadata:
		m, err := ev.Metadata()
		if err != nil {
			c.malformed(raw.Name, err)
			return
		}
		c.deliver(ex, false, func() {
			if cb.OnMetadata != nil {
				cb.OnMetadata(m)
			}
		})

	case EventSourceDocuments:
		docs, err := ev.SourceDocuments()
		if err != nil {
			c.malformed(raw.Name, err)
			return
		}
		c.deliver(ex, false, func() {
			if cb.OnSourceDocuments != nil {
				cb.OnSourceDocuments(docs)
			}
		})

	case EventUsedTools:
		tools, err := ev.UsedTools()
		if err != nil {
			c.malformed(raw.Name, err)
			return
		}
		c.deliver(ex, false, func() {
			if cb.OnUsedTools != nil {
				cb.OnUsedTools(tools)
			}
		})

	case EventError:
		c.fail(ex, ev.ErrorMessage())

	case EventEnd:
		c.deliver(ex, true, func() {
			if cb.OnEnd != nil {
				cb.OnEnd()
			}
		})

	default:
		c.logger.Debug().Str("event", string(ev.Type)).Msg("ignoring unknown stream event")
	}
}

// fail delivers the single terminal OnError of ex.
func (c *Consumer) fail(ex *exchange, message string) {
	c.deliver(ex, true, func() {
		if ex.callbacks.OnError != nil {
			ex.callbacks.OnError(message)
		}
	})
}

// deliver runs fn unless ex is closed. A terminal delivery closes ex before fn
// runs, so nothing can follow it.
func (c *Consumer) deliver(ex *exchange, terminal bool, fn func()) bool {
	ex.deliverMu.Lock()
	defer ex.deliverMu.Unlock()

	if ex.closed.Load() {
		return false
	}
	if terminal {
		ex.closed.Store(true)
		c.mu.Lock()
		if c.current == ex {
			c.state = StateClosed
		}
		c.mu.Unlock()
	}

	ex.inCallback.Store(true)
	defer ex.inCallback.Store(false)
	fn()
	return true
}

func (c *Consumer) transition(ex *exchange, from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ex || c.state != from {
		return false
	}
	c.state = to
	return true
}

func (c *Consumer) appendToken(ex *exchange, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == ex {
		c.message.WriteString(text)
	}
}

func (c *Consumer) malformed(name string, err error) {
	c.logger.Warn().Err(err).Str("event", name).Msg("skipping malformed stream event")
}

func requestErrorMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Message()
	}
	return fmt.Sprintf("request failed: %v", err)
}
