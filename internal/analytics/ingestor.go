package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/tier-router/internal/store"
	"github.com/nulzo/tier-router/internal/store/model"
	"go.uber.org/zap"
)

// Ingestor handles the asynchronous persistence of request logs.
type Ingestor interface {
	Log(log *model.RequestLog)
	Start(ctx context.Context)
	// Stop flushes what is buffered and waits for the worker to exit.
	Stop()
}

type IngestorOption func(*ingestor)

func WithBatchSize(n int) IngestorOption {
	return func(i *ingestor) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) IngestorOption {
	return func(i *ingestor) {
		if d > 0 {
			i.flushTime = d
		}
	}
}

func WithBufferSize(n int) IngestorOption {
	return func(i *ingestor) {
		if n > 0 {
			i.bufferSize = n
		}
	}
}

type ingestor struct {
	logger     *zap.Logger
	repo       store.Repository
	pricer     *Pricer
	batchSize  int
	bufferSize int
	flushTime  time.Duration

	logChan chan *model.RequestLog
	done    chan struct{}

	mu      sync.RWMutex
	stopped bool
}

func NewIngestor(logger *zap.Logger, repo store.Repository, pricer *Pricer, opts ...IngestorOption) Ingestor {
	i := &ingestor{
		logger:     logger.Named("ingestor"),
		repo:       repo,
		pricer:     pricer,
		batchSize:  50,
		bufferSize: 10000,
		flushTime:  5 * time.Second,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logChan = make(chan *model.RequestLog, i.bufferSize)
	return i
}

// Log never blocks. When the buffer is full or the ingestor has stopped the
// log is dropped.
func (i *ingestor) Log(log *model.RequestLog) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.stopped {
		return
	}
	select {
	case i.logChan <- log:
	default:
		i.logger.Warn("Analytics buffer full, dropping log", zap.String("request_id", log.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	i.mu.Lock()
	if !i.stopped {
		i.stopped = true
		close(i.logChan)
	}
	i.mu.Unlock()
	<-i.done
}

func (i *ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*model.RequestLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		i.persist(batch)
		batch = batch[:0]
	}

	for {
		select {
		case log, ok := <-i.logChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, log)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			i.drain(&batch)
			flush()
			return
		}
	}
}

// drain moves whatever is already buffered into batch without waiting.
func (i *ingestor) drain(batch *[]*model.RequestLog) {
	for {
		select {
		case log, ok := <-i.logChan:
			if !ok {
				return
			}
			*batch = append(*batch, log)
		default:
			return
		}
	}
}

func (i *ingestor) persist(batch []*model.RequestLog) {
	// the request context is long gone by now
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if i.pricer != nil {
		for _, log := range batch {
			if log.TotalCostMicros == 0 {
				log.TotalCostMicros = i.pricer.Cost(ctx, log.ModelID, log.InputTokens, log.OutputTokens)
			}
		}
	}

	err := i.repo.Requests().LogBatch(ctx, batch)
	if err == nil {
		return
	}

	i.logger.Warn("Batch insert failed, retrying one by one", zap.Int("size", len(batch)), zap.Error(err))
	for _, log := range batch {
		if err := i.repo.Requests().Log(ctx, log); err != nil {
			i.logger.Error("Failed to persist request log", zap.String("id", log.ID), zap.Error(err))
		}
	}
}
