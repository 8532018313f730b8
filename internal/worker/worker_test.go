package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) error {
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit some jobs
	for i := 0; i < 5; i++ {
		if err := pool.Submit(ctx, i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) error {
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(4, 100, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit many jobs concurrently
	for i := 0; i < 100; i++ {
		go func(n int) {
			_ = pool.Submit(ctx, n)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_FailedJobsDoNotStopWorkers(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) error {
		processed.Add(1)
		if job.(int)%2 == 0 {
			return errors.New("boom")
		}
		return nil
	}

	pool := NewWorkerPool(1, 10, processor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 6; i++ {
		_ = pool.Submit(ctx, i)
	}
	pool.Stop()

	if processed.Load() != 6 {
		t.Errorf("expected 6 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job Job) error {
		time.Sleep(10 * time.Millisecond) // Simulate work
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(2, 50, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit jobs
	for i := 0; i < 20; i++ {
		_ = pool.Submit(ctx, i)
	}

	// Cancel immediately
	cancel()

	// Stop should wait for in-flight jobs
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Good
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d jobs before shutdown", processed.Load())
}

func TestWorkerPool_ContextCancellation(t *testing.T) {
	var started atomic.Int64
	var completed atomic.Int64

	processor := func(ctx context.Context, job Job) error {
		started.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			completed.Add(1)
			return nil
		}
	}

	pool := NewWorkerPool(2, 10, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit jobs
	for i := 0; i < 5; i++ {
		_ = pool.Submit(ctx, i)
	}

	// Wait a bit then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()
	pool.Stop()

	t.Logf("started: %d, completed: %d", started.Load(), completed.Load())
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(1, 1, func(ctx context.Context, job Job) error { return nil })
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	if err := pool.Submit(context.Background(), 1); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	pool := NewWorkerPool(1, 0, func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	pool.Start(context.Background())

	// first job occupies the only worker
	if err := pool.Submit(context.Background(), 1); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Submit(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(block)
	pool.Stop()
}

func TestWorkerPool_StopReleasesBlockedSubmit(t *testing.T) {
	started := make(chan struct{}, 2)
	block := make(chan struct{})
	var processed atomic.Int64
	pool := NewWorkerPool(1, 1, func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-block
		processed.Add(1)
		return nil
	})
	pool.Start(context.Background())

	// job 1 holds the worker, job 2 fills the buffer
	if err := pool.Submit(context.Background(), 1); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	<-started
	if err := pool.Submit(context.Background(), 2); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	submitErr := make(chan error, 1)
	go func() {
		submitErr <- pool.Submit(context.Background(), 3)
	}()

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case err := <-submitErr:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after Stop")
	}

	close(block)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	if processed.Load() != 2 {
		t.Errorf("expected buffered job to drain, got %d processed", processed.Load())
	}
}

func TestWorkerPool_StopDrainsBuffer(t *testing.T) {
	var processed atomic.Int64
	gate := make(chan struct{})
	pool := NewWorkerPool(2, 20, func(ctx context.Context, job Job) error {
		<-gate
		processed.Add(1)
		return nil
	})
	pool.Start(context.Background())

	for i := 0; i < 20; i++ {
		if err := pool.Submit(context.Background(), i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	close(gate)
	pool.Stop()

	if processed.Load() != 20 {
		t.Errorf("expected 20 jobs processed, got %d", processed.Load())
	}
}
