// Package worker drains queued document jobs into the processing pipeline.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one queued document.
type Job struct {
	DocID string
}

// Processor is what a worker runs per job.
type Processor interface {
	ProcessDocument(ctx context.Context, docID string) error
}

type Queue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(proc Processor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("document worker online", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.proc.ProcessDocument(ctx, job.DocID)
					cancel()

					if err != nil {
						q.logger.Error("job failed", "worker_id", workerID, "doc_id", job.DocID, "error", err)
					} else {
						q.logger.Info("job finished", "worker_id", workerID, "doc_id", job.DocID)
					}
				}

				q.logger.Info("document worker exiting", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("enqueue rejected, intake closed", "doc_id", job.DocID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("document queued", "doc_id", job.DocID)
	default:
		q.logger.Warn("queue at capacity, enqueue will block", "doc_id", job.DocID)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake and waits for in-flight jobs, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		q.logger.Info("all document workers drained")
	case <-ctx.Done():
		q.logger.Warn("shutdown deadline hit before workers drained", "error", ctx.Err())
	}
}
