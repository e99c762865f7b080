package game

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	ACTION_QUEUE_SIZE = 1024
	COUNTDOWN_TICK    = time.Second
	LEDGER_TIMEOUT    = 5 * time.Second
	WATCHDOG_INTERVAL = 5 * time.Second
	STALL_GRACE       = 5 * time.Second
)

type Timer interface {
	Stop()
}

// Scheduler drives round phases. Every callback, including the
// continuation returned by Go's work, runs on the scheduling goroutine.
// Work passed to Go runs elsewhere and must not touch round state.
type Scheduler interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
	Go(work func(ctx context.Context) func())
}

// Loop is the single goroutine that owns all round and registry state.
// Timer ticks and player intents are queued as closures and executed in
// arrival order, so round state needs no locks.
type Loop struct {
	actions chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	running atomic.Bool
}

func NewLoop() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		actions: make(chan func(), ACTION_QUEUE_SIZE),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (l *Loop) Run() {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case <-l.ctx.Done():
			log.Println("[LOOP] Stopped")
			return
		case fn := <-l.actions:
			l.exec(fn)
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[LOOP] Recovered from panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Do queues fn. It returns false once the loop is stopped.
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
	}
	select {
	case l.actions <- fn:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Call queues fn and waits for it to finish. Never call it from the loop itself.
func (l *Loop) Call(fn func()) bool {
	done := make(chan struct{})
	if !l.Do(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *Loop) Running() bool {
	return l.running.Load() && l.ctx.Err() == nil
}

// Stop halts the loop and waits for in-flight Go work. Continuations of
// that work are dropped.
func (l *Loop) Stop() {
	l.cancel()
	l.workers.Wait()
}

type loopTimer struct {
	stopped atomic.Bool
	stop    func()
}

func (t *loopTimer) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		t.stop()
	}
}

func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	t.stop = func() { close(quit) }

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// A tick already queued when Stop runs is discarded here.
				if !l.Do(func() {
					if !t.stopped.Load() {
						fn()
					}
				}) {
					return
				}
			case <-quit:
				return
			case <-l.ctx.Done():
				return
			}
		}
	}()
	return t
}

func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	timer := time.AfterFunc(d, func() {
		l.Do(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	t.stop = func() { timer.Stop() }
	return t
}

func (l *Loop) Go(work func(ctx context.Context) func()) {
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[LOOP] Recovered from worker panic: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), LEDGER_TIMEOUT)
		defer cancel()

		if then := work(ctx); then != nil {
			l.Do(then)
		}
	}()
}

// guard wraps a phase-transition callback so a panic inside it is handed
// to onPanic instead of unwinding the loop.
func guard(tag string, fn func(), onPanic func(reason interface{})) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] Phase transition panicked: %v", tag, r)
				onPanic(r)
			}
		}()
		fn()
	}
}

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
