// Package flush buffers completed measurement blocks and drains them into
// durable storage in periodic batches. Entries that fail to insert are kept
// pending and retried on the next cycle, so a storage outage delays
// persistence but never loses blocks.
package flush

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/E3-JSI/co2-emissions-prediction/internal/retry"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/config"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Common errors returned by the flush queue.
var (
	ErrQueueClosed = errors.New("flush queue is closed")
	ErrNoStore     = errors.New("no durable store configured")
)

// Logger is the subset of log.Logger the queue needs.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Inserter writes a completed block's measurements to durable storage.
type Inserter interface {
	Insert(ctx context.Context, key models.WorkloadKey, measurements []models.Measurement) error
}

// Entry pairs a completed block with the workload it belongs to.
type Entry struct {
	Key   models.WorkloadKey `json:"key"`
	Block models.Block       `json:"block"`
}

// QueueStats provides statistics about the flush queue.
type QueueStats struct {
	Pending       int   `json:"pending"`
	TotalEnqueued int64 `json:"total_enqueued"`
	TotalFlushed  int64 `json:"total_flushed"`
	TotalFailed   int64 `json:"total_failed"`
	FlushCycles   int64 `json:"flush_cycles"`
}

// Queue accumulates completed blocks between flush cycles.
type Queue struct {
	mu      sync.Mutex
	pending []Entry
	closed  bool

	store    Inserter
	retryCfg retry.Config
	sleep    retry.Sleeper
	interval time.Duration
	logger   Logger

	totalEnqueued int64
	totalFlushed  int64
	totalFailed   int64
	flushCycles   int64
}

// Option customizes the queue.
type Option func(*Queue)

// WithSleeper overrides the inter-attempt sleep, for tests.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(q *Queue) { q.sleep = sleep }
}

// NewQueue creates a flush queue draining into store.
func NewQueue(cfg config.FlushConfig, store Inserter, logger Logger, opts ...Option) *Queue {
	q := &Queue{
		store:    store,
		retryCfg: retry.Config{Attempts: cfg.InsertAttempts, Delay: cfg.InsertRetryDelay},
		sleep:    time.Sleep,
		interval: cfg.Interval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a completed block. It is cheap and never blocks on
// storage, so it is safe to call from the ingest path. Satisfies
// ingest.CompletionFunc.
func (q *Queue) Enqueue(key models.WorkloadKey, block models.Block) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, Entry{Key: key, Block: block})
	atomic.AddInt64(&q.totalEnqueued, 1)
	return nil
}

// Pending returns the number of entries waiting to be flushed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Flush drains the queue into the store. Each entry gets the configured
// insert attempt budget; entries that still fail are put back at the front
// of the queue so ordering is preserved for the next cycle. Successful
// entries are never re-inserted.
func (q *Queue) Flush(ctx context.Context) error {
	if q.store == nil {
		return ErrNoStore
	}

	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	atomic.AddInt64(&q.flushCycles, 1)
	if len(batch) == 0 {
		return nil
	}

	batchID := uuid.New().String()[:8]
	q.logger.Printf("Flushing %d blocks (batch %s)", len(batch), batchID)

	var failed []Entry
	var firstErr error
	for _, entry := range batch {
		if ctx.Err() != nil {
			failed = append(failed, entry)
			continue
		}
		entry := entry
		err := retry.Do(q.retryCfg, q.sleep, func() error {
			return q.store.Insert(ctx, entry.Key, entry.Block.Measurements)
		})
		if err != nil {
			q.logger.Printf("Insert failed for %s (batch %s): %v", entry.Key, batchID, err)
			failed = append(failed, entry)
			firstErr = errors.Join(firstErr, err)
			continue
		}
		atomic.AddInt64(&q.totalFlushed, 1)
	}

	if len(failed) > 0 {
		atomic.AddInt64(&q.totalFailed, int64(len(failed)))
		q.mu.Lock()
		q.pending = append(failed, q.pending...)
		q.mu.Unlock()
		q.logger.Printf("Batch %s: %d/%d blocks re-queued", batchID, len(failed), len(batch))
	}
	return firstErr
}

// Run flushes on the configured interval until the context is cancelled,
// then performs one final drain so blocks completed during shutdown are not
// stranded in memory.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	q.logger.Printf("Flush loop started (interval %s)", q.interval)
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), q.interval)
			if err := q.Flush(flushCtx); err != nil {
				q.logger.Printf("Final flush: %v", err)
			}
			cancel()
			q.logger.Printf("Flush loop stopped")
			return
		case <-ticker.C:
			if err := q.Flush(ctx); err != nil {
				q.logger.Printf("Flush cycle: %v", err)
			}
		}
	}
}

// Close marks the queue closed. Further Enqueue calls fail; pending entries
// can still be drained with Flush.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Stats returns queue statistics.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	pending := len(q.pending)
	q.mu.Unlock()

	return QueueStats{
		Pending:       pending,
		TotalEnqueued: atomic.LoadInt64(&q.totalEnqueued),
		TotalFlushed:  atomic.LoadInt64(&q.totalFlushed),
		TotalFailed:   atomic.LoadInt64(&q.totalFailed),
		FlushCycles:   atomic.LoadInt64(&q.flushCycles),
	}
}
