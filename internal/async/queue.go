// Package async runs jobs on a fixed pool of workers with a bounded buffer.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Handler processes one job. The context carries the per-job timeout.
type Handler[J any] func(ctx context.Context, job J) error

type Queue[J any] struct {
	handle  Handler[J]
	logger  *slog.Logger
	workers int
	size    int
	timeout time.Duration
	base    context.Context

	ch   chan J
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type config struct {
	workers int
	size    int
	timeout time.Duration
	base    context.Context
}

type Option func(*config)

func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.size = n
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithContext sets the parent of every job context. Cancelling it aborts in-flight jobs.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

func NewQueue[J any](handle Handler[J], logger *slog.Logger, opts ...Option) *Queue[J] {
	if logger == nil {
		logger = slog.Default()
	}
	c := config{workers: 4, size: 256, timeout: 3 * time.Minute, base: context.Background()}
	for _, o := range opts {
		o(&c)
	}
	q := &Queue[J]{
		handle:  handle,
		logger:  logger,
		workers: c.workers,
		size:    c.size,
		timeout: c.timeout,
		base:    c.base,
		ch:      make(chan J, c.size),
	}
	q.start()
	return q
}

func (q *Queue[J]) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(q.base, q.timeout)
					err := q.run(ctx, job)
					cancel()
					if err != nil {
						q.logger.Debug("async.job.failed", "worker_id", workerID, "error", err)
					}
				}

				q.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run isolates a panicking handler so one bad job cannot take the pool down.
func (q *Queue[J]) run(ctx context.Context, job J) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("async.job.panic", "panic", r)
			err = errors.New("job panicked")
		}
	}()
	return q.handle(ctx, job)
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *Queue[J]) Enqueue(ctx context.Context, job J) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- job:
		return nil
	default:
		q.logger.Debug("async.queue.full", "size", q.size)
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain, or for ctx to end.
func (q *Queue[J]) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
		return ctx.Err()
	case <-done:
		q.logger.Debug("async.shutdown.drained")
		return nil
	}
}
