package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/sittingbulll/tokenwatch/internal/metrics"
)

// ErrQueueFull is returned by Submit when the job queue has no room. The
// caller decides whether to drop or to push back on the producer.
var ErrQueueFull = errors.New("worker queue full")

// Job is a unit of work executed on a pool goroutine.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed set of goroutines behind a bounded queue.
type Pool struct {
	logger  *slog.Logger
	jobs    chan Job
	workers int

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pool{
		logger:  logger.With("component", "worker_pool"),
		jobs:    make(chan Job, queueSize),
		workers: workers,
	}
}

// Start launches the worker goroutines. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		for i := 0; i < p.workers; i++ {
			p.done.Add(1)
			go p.run(ctx, i)
		}
		p.logger.Info("worker pool started", "workers", p.workers, "queue_size", cap(p.jobs))
	})
}

// Submit enqueues a job without blocking. Returns ErrQueueFull when the
// queue is saturated.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		metrics.QueueDepth.Set(float64(len(p.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels in-flight jobs and waits for the workers to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		close(p.jobs)
		p.done.Wait()
		p.logger.Info("worker pool stopped")
	})
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.done.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(p.jobs)))
			p.execute(ctx, id, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"worker", id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	job(ctx)
}
