package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/core/docdb"
	"github.com/unifiedui/community-gateway/internal/domain/models"
)

const recordTimeout = 10 * time.Second

// recorder persists finished exchanges off the request path.
type recorder struct {
	store   docdb.ExchangesCollection
	jobs    chan *models.ChatExchange
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

func newRecorder(store docdb.ExchangesCollection, bufferSize, workers int) *recorder {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{
		store:  store,
		jobs:   make(chan *models.ChatExchange, bufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *recorder) worker() {
	defer r.wg.Done()

	for exchange := range r.jobs {
		ctx, cancel := context.WithTimeout(r.ctx, recordTimeout)
		if err := r.store.Add(ctx, exchange); err != nil {
			log.Warn().Err(err).Str("exchangeId", exchange.ID).Msg("failed to store chat exchange")
		}
		cancel()
	}
}

// enqueue adds an exchange without blocking; a full queue drops it.
func (r *recorder) enqueue(exchange *models.ChatExchange) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}
	select {
	case r.jobs <- exchange:
		return true
	default:
		log.Warn().Str("exchangeId", exchange.ID).Msg("chat exchange queue full, dropping exchange")
		return false
	}
}

// stop lets queued exchanges drain, then waits for the workers.
func (r *recorder) stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
}
