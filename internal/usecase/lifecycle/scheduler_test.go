package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsTasks(t *testing.T) {
	scheduler := NewScheduler(2, 10)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	var ran atomic.Int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		err := scheduler.Enqueue(newTask(TaskTranslation, uint64(i+1), time.Second, func(ctx context.Context) error {
			ran.Add(1)
			done <- struct{}{}
			return nil
		}))
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("task %d did not run", i)
		}
	}
	if got := ran.Load(); got != 3 {
		t.Fatalf("ran = %d, want 3", got)
	}
}

func TestSchedulerQueueFull(t *testing.T) {
	scheduler := NewScheduler(1, 1)

	noop := func(context.Context) error { return nil }
	if err := scheduler.Enqueue(newTask(TaskImage, 1, time.Second, noop)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := scheduler.Enqueue(newTask(TaskImage, 2, time.Second, noop)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() error = %v, want ErrQueueFull", err)
	}
	if got := scheduler.QueueDepth(); got != 1 {
		t.Fatalf("QueueDepth() = %d, want 1", got)
	}
}

func TestSchedulerCancelArticle(t *testing.T) {
	scheduler := NewScheduler(2, 10)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	started := make(chan struct{})
	finished := make(chan error, 1)
	err := scheduler.Enqueue(newTask(TaskGeneration, 7, time.Minute, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	}))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("task did not start")
	}
	if got := scheduler.CancelArticle(7, TaskImage); got != 0 {
		t.Fatalf("CancelArticle() other kind = %d, want 0", got)
	}
	if got := scheduler.CancelArticle(7); got != 1 {
		t.Fatalf("CancelArticle() = %d, want 1", got)
	}

	select {
	case err := <-finished:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("task ctx error = %v, want canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("task was not cancelled")
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	err := runSafely(context.Background(), newTask(TaskSocial, 1, time.Second, func(context.Context) error {
		panic("boom")
	}))
	if err == nil {
		t.Fatalf("runSafely() error = nil, want panic error")
	}
}
