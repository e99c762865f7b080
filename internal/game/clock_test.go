package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop()
	go loop.Run()
	t.Cleanup(loop.Stop)
	return loop
}

func TestLoop_RunsActionsInOrder(t *testing.T) {
	loop := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Do(func() { got = append(got, i) })
	}
	loop.Call(func() {})

	if len(got) != 100 {
		t.Fatalf("ran %d actions, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("action %d ran out of order: %d", i, v)
		}
	}
}

func TestLoop_SurvivesPanic(t *testing.T) {
	loop := startLoop(t)

	loop.Do(func() { panic("boom") })
	ran := false
	if !loop.Call(func() { ran = true }) || !ran {
		t.Fatal("loop stopped serving after a panic")
	}
}

func TestLoop_DoAfterStop(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	loop.Stop()

	if loop.Do(func() {}) {
		t.Error("Do() accepted work after Stop")
	}
	if loop.Running() {
		t.Error("Running() = true after Stop")
	}
}

func TestLoop_Every(t *testing.T) {
	loop := startLoop(t)

	var count atomic.Int32
	timer := loop.Every(5*time.Millisecond, func() { count.Add(1) })

	deadline := time.Now().Add(time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if count.Load() < 3 {
		t.Fatalf("ticker fired %d times, want at least 3", count.Load())
	}

	loop.Call(timer.Stop)
	stopped := count.Load()
	time.Sleep(30 * time.Millisecond)
	loop.Call(func() {})
	if count.Load() != stopped {
		t.Errorf("ticker fired after Stop: %d -> %d", stopped, count.Load())
	}
}

func TestLoop_AfterCancelled(t *testing.T) {
	loop := startLoop(t)

	var fired atomic.Bool
	timer := loop.After(20*time.Millisecond, func() { fired.Store(true) })
	loop.Call(timer.Stop)

	time.Sleep(50 * time.Millisecond)
	loop.Call(func() {})
	if fired.Load() {
		t.Error("After fired after Stop")
	}
}

func TestLoop_After(t *testing.T) {
	loop := startLoop(t)

	done := make(chan struct{})
	loop.After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("After never fired")
	}
}

func TestLoop_GoContinuationRunsOnLoop(t *testing.T) {
	loop := startLoop(t)

	state := 0
	done := make(chan int, 1)
	loop.Do(func() {
		loop.Go(func(ctx context.Context) func() {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("work context has no deadline")
			}
			return func() {
				state++
				done <- state
			}
		})
	})

	select {
	case got := <-done:
		if got != 1 {
			t.Errorf("state = %d, want 1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestGuard(t *testing.T) {
	var reason interface{}
	fn := guard("TEST", func() { panic("stuck") }, func(r interface{}) { reason = r })

	fn()
	if reason != "stuck" {
		t.Errorf("onPanic reason = %v, want stuck", reason)
	}

	ran := false
	guard("TEST", func() { ran = true }, func(interface{}) { t.Error("onPanic called without a panic") })()
	if !ran {
		t.Error("guarded function did not run")
	}
}
