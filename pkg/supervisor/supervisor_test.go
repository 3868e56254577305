package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRestartsAfterPanic(t *testing.T) {
	s := New(WithRestartDelay(10 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	s.Go(ctx, "panicky", func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			panic("boom")
		}
		cancel()
		return nil
	})

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task never recovered and completed")
	}
	s.Wait()

	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("expected at least 3 calls, got %d", got)
	}
}

func TestGoRestartsAfterError(t *testing.T) {
	s := New(WithRestartDelay(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	s.Go(ctx, "erroring", func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n >= 3 {
			cancel()
			return nil
		}
		return errors.New("transient failure")
	})

	<-ctx.Done()
	s.Wait()

	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("expected at least 3 calls, got %d", got)
	}
}

func TestGoStopsOnContextCancel(t *testing.T) {
	s := New(WithRestartDelay(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 1)
	s.Go(ctx, "blocker", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})

	<-started
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down after context cancel")
	}
}

func TestRunOnScheduleRunsImmediatelyThenOnTick(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		RunOnSchedule(ctx, 10*time.Millisecond, func(ctx context.Context) {
			n := atomic.AddInt32(&calls, 1)
			if n >= 3 {
				cancel()
			}
		})
	}()

	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("expected at least 3 invocations, got %d", got)
	}
}

func TestRunOnScheduleRejectsNonPositiveInterval(t *testing.T) {
	err := RunOnSchedule(context.Background(), 0, func(ctx context.Context) {})
	if err == nil {
		t.Fatal("expected error for zero interval")
	}
}
