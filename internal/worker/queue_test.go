package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueue_RunsOneAtATime(t *testing.T) {
	q := NewQueue("test")
	q.Start()
	defer q.Stop()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), "job", func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("Expected at most 1 concurrent job, got %d", maxRunning)
	}
}

func TestQueue_ReturnsJobError(t *testing.T) {
	q := NewQueue("test")
	q.Start()
	defer q.Stop()

	boom := errors.New("boom")
	if err := q.Do(context.Background(), "fail", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Expected job error, got %v", err)
	}
}

func TestQueue_JobContextNotCancelled(t *testing.T) {
	q := NewQueue("test")
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	err := q.Do(ctx, "job", func(jobCtx context.Context) error {
		cancel()
		return jobCtx.Err()
	})
	if err != nil {
		t.Errorf("Expected job context to survive caller cancellation, got %v", err)
	}
}

func TestQueue_Stopped(t *testing.T) {
	q := NewQueue("test")
	q.Start()
	q.Stop()

	err := q.Do(context.Background(), "late", func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueStopped) {
		t.Errorf("Expected ErrQueueStopped, got %v", err)
	}
}
