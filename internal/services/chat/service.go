package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/unifiedui/community-gateway/internal/core/docdb"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/observability"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

const (
	modePredict = "predict"
	modeStream  = "stream"

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxTrackedLimiters  = 10000
)

// Config holds the configuration for the chat service.
type Config struct {
	Backend Backend
	// Exchanges stores finished exchanges; nil disables history.
	Exchanges docdb.ExchangesCollection
	Metrics   *observability.Metrics

	MaxQuestionLength int
	MaxHistory        int
	// RateLimit is the sustained per-user request rate; zero disables limiting.
	RateLimit rate.Limit
	RateBurst int

	QueueSize int
	Workers   int
	// Now overrides the clock in tests.
	Now func() time.Time
}

type service struct {
	backend     Backend
	exchanges   docdb.ExchangesCollection
	recorder    *recorder
	metrics     *observability.Metrics
	maxQuestion int
	maxHistory  int
	rateLimit   rate.Limit
	rateBurst   int
	now         func() time.Time

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewService creates a new chat service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("chat backend is required")
	}

	s := &service{
		backend:     cfg.Backend,
		exchanges:   cfg.Exchanges,
		metrics:     cfg.Metrics,
		maxQuestion: cfg.MaxQuestionLength,
		maxHistory:  cfg.MaxHistory,
		rateLimit:   cfg.RateLimit,
		rateBurst:   cfg.RateBurst,
		now:         cfg.Now,
		limiters:    make(map[string]*rate.Limiter),
	}
	if s.maxQuestion <= 0 {
		s.maxQuestion = DefaultMaxQuestionLength
	}
	if s.maxHistory < 0 {
		s.maxHistory = 0
	} else if cfg.MaxHistory == 0 {
		s.maxHistory = DefaultMaxHistory
	}
	if s.rateBurst <= 0 {
		s.rateBurst = 1
	}
	if s.now == nil {
		s.now = time.Now
	}

	if cfg.Exchanges != nil {
		queueSize, workers := cfg.QueueSize, cfg.Workers
		if queueSize <= 0 {
			queueSize = 256
		}
		if workers <= 0 {
			workers = 2
		}
		s.recorder = newRecorder(cfg.Exchanges, queueSize, workers)
	}

	return s, nil
}

// Ask answers a question synchronously.
func (s *service) Ask(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	prepared, err := s.prepare(userID, req)
	if err != nil {
		s.metrics.RecordChat(modePredict, "rejected")
		return nil, err
	}

	started := s.now()
	exchange := models.NewChatExchange(uuid.NewString(), userID, prepared.Question, s.backend.Name())

	resp, err := s.backend.Predict(ctx, prepared)
	exchange.LatencyMs = s.now().Sub(started).Milliseconds()
	if err != nil {
		exchange.Status = models.ExchangeStatusFailed
		exchange.Error = err.Error()
		s.record(exchange)
		s.metrics.RecordChat(modePredict, string(models.ExchangeStatusFailed))
		log.Warn().Err(err).Str("backend", s.backend.Name()).Msg("chat prediction failed")
		return nil, s.backendError(err)
	}

	exchange.Status = models.ExchangeStatusCompleted
	exchange.Answer = resp.Text
	exchange.SourceDocuments = resp.SourceDocuments
	s.record(exchange)
	s.metrics.RecordChat(modePredict, string(models.ExchangeStatusCompleted))

	if resp.ChatID == "" {
		resp.ChatID = exchange.ID
	}
	return resp, nil
}

// Stream answers a question as a stream of events. The returned channel is
// closed after a terminal event, or early when ctx is cancelled.
func (s *service) Stream(ctx context.Context, userID string, req *models.ChatRequest) (<-chan chatstream.Event, error) {
	prepared, err := s.prepare(userID, req)
	if err != nil {
		s.metrics.RecordChat(modeStream, "rejected")
		return nil, err
	}

	started := s.now()
	upstream, err := s.backend.Stream(ctx, prepared)
	if err != nil {
		s.metrics.RecordChat(modeStream, string(models.ExchangeStatusFailed))
		log.Warn().Err(err).Str("backend", s.backend.Name()).Msg("chat stream failed to open")
		return nil, s.backendError(err)
	}

	out := make(chan chatstream.Event, 16)
	streamDone := s.metrics.StreamStarted()

	go func() {
		defer close(out)
		defer streamDone()

		exchange := models.NewChatExchange(uuid.NewString(), userID, prepared.Question, s.backend.Name())
		exchange.Status = models.ExchangeStatusCancelled
		var answer strings.Builder
		sawToken := false

	relay:
		for ev := range upstream {
			switch ev.Type {
			case chatstream.EventToken:
				text, err := ev.Text()
				if err != nil {
					continue
				}
				if !sawToken {
					sawToken = true
					s.metrics.ObserveFirstToken(s.now().Sub(started))
				}
				answer.WriteString(text)
			case chatstream.EventSourceDocuments:
				if docs, err := ev.SourceDocuments(); err == nil {
					exchange.SourceDocuments = docs
				}
			case chatstream.EventEnd:
				exchange.Status = models.ExchangeStatusCompleted
			case chatstream.EventError:
				exchange.Status = models.ExchangeStatusFailed
				exchange.Error = ev.ErrorMessage()
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				break relay
			}
			if ev.Type.IsTerminal() {
				break relay
			}
		}

		exchange.Answer = answer.String()
		exchange.LatencyMs = s.now().Sub(started).Milliseconds()
		s.metrics.RecordChat(modeStream, string(exchange.Status))
		s.record(exchange)

		log.Debug().
			Str("exchangeId", exchange.ID).
			Str("status", string(exchange.Status)).
			Int64("latencyMs", exchange.LatencyMs).
			Msg("chat stream finished")
	}()

	return out, nil
}

// History returns the user's past exchanges, newest first.
func (s *service) History(ctx context.Context, userID string, limit, skip int64) ([]*models.ChatExchange, error) {
	if userID == "" {
		return nil, domainerrors.NewUnauthorizedError("user is required")
	}
	if s.exchanges == nil {
		return []*models.ChatExchange{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if skip < 0 {
		skip = 0
	}

	exchanges, err := s.exchanges.List(ctx, &docdb.ListExchangesOptions{
		UserID:  userID,
		Limit:   limit,
		Skip:    skip,
		OrderBy: docdb.SortOrderDesc,
	})
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list chat history", err)
	}
	return exchanges, nil
}

// Close drains pending writes and releases the backend.
func (s *service) Close() error {
	if s.recorder != nil {
		s.recorder.stop()
	}
	return s.backend.Close()
}

// prepare validates req and returns the copy sent to the backend.
func (s *service) prepare(userID string, req *models.ChatRequest) (*models.ChatRequest, error) {
	if req == nil {
		return nil, domainerrors.NewValidationError("question is required", "")
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domainerrors.NewValidationError("question is required", "")
	}
	if n := utf8.RuneCountInString(question); n > s.maxQuestion {
		return nil, domainerrors.NewValidationError(
			"question is too long",
			fmt.Sprintf("%d characters, maximum is %d", n, s.maxQuestion),
		)
	}

	if !s.allow(userID) {
		return nil, domainerrors.NewRateLimitedError("too many chat requests")
	}

	prepared := *req
	prepared.Question = question
	prepared.History = trimHistory(req.History, s.maxHistory)
	return &prepared, nil
}

// allow applies the per-user rate limit.
func (s *service) allow(userID string) bool {
	if s.rateLimit <= 0 {
		return true
	}
	if userID == "" {
		userID = "anonymous"
	}

	s.limitersMu.Lock()
	limiter, ok := s.limiters[userID]
	if !ok {
		if len(s.limiters) >= maxTrackedLimiters {
			s.pruneLimiters()
		}
		limiter = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[userID] = limiter
	}
	s.limitersMu.Unlock()

	return limiter.Allow()
}

// pruneLimiters forgets users whose bucket has refilled. Callers hold limitersMu.
func (s *service) pruneLimiters() {
	for id, l := range s.limiters {
		if l.Tokens() >= float64(l.Burst()) {
			delete(s.limiters, id)
		}
	}
}

func (s *service) record(exchange *models.ChatExchange) {
	if s.recorder == nil || exchange.UserID == "" {
		return
	}
	s.recorder.enqueue(exchange)
}

// trimHistory keeps the last max non-empty entries.
func trimHistory(history []models.ChatHistoryEntry, max int) []models.ChatHistoryEntry {
	if max == 0 || len(history) == 0 {
		return nil
	}
	kept := make([]models.ChatHistoryEntry, 0, len(history))
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		if h.Role != models.ChatRoleUser && h.Role != models.ChatRoleAssistant {
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) > max {
		kept = kept[len(kept)-max:]
	}
	return kept
}

// backendError maps a failed backend call to the error returned to the caller.
func (s *service) backendError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.NewTimeoutError(s.backend.Name() + " request")
	}
	return domainerrors.NewUpstreamError(s.backend.Name(), err)
}
