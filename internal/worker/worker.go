package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Job interface{}

type ProcessFunc func(ctx context.Context, job Job) error

type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	processor  ProcessFunc
	wg         sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

func NewWorkerPool(numWorkers int, bufferSize int, processor ProcessFunc) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
		processor:  processor,
		done:       make(chan struct{}),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-wp.jobs:
			wp.process(ctx, id, job)
		case <-wp.done:
			wp.drain(ctx, id)
			return
		}
	}
}

// drain runs whatever is still buffered once the pool is stopped.
func (wp *WorkerPool) drain(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-wp.jobs:
			wp.process(ctx, id, job)
		default:
			return
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, id int, job Job) {
	if err := wp.processor(ctx, job); err != nil {
		slog.Debug("job failed", "worker", id, "error", err)
	}
}

// Submit queues a job, blocking while the buffer is full. It fails once the
// pool is stopped or ctx is done, including while blocked.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case <-wp.done:
		return ErrPoolClosed
	default:
	}

	select {
	case wp.jobs <- job:
		return nil
	case <-wp.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop wakes blocked submitters and waits for the workers to drain the
// buffer. It is safe to call more than once.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.done)
	})
	wp.wg.Wait()
}
