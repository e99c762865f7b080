package game

import (
	"context"
	"sync"
	"time"

	"arcade/internal/config"
)

type fakeTimer struct {
	every   bool
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() {
	t.stopped = true
}

// fakeScheduler fires timers and runs ledger work only when the test asks.
type fakeScheduler struct {
	timers []*fakeTimer
	work   []func(ctx context.Context) func()
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Timer {
	t := &fakeTimer{every: true, d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) After(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Go(work func(ctx context.Context) func()) {
	s.work = append(s.work, work)
}

func (s *fakeScheduler) active(every bool) []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && t.every == every {
			out = append(out, t)
		}
	}
	return out
}

// tick fires every live recurring timer once.
func (s *fakeScheduler) tick() {
	for _, t := range s.active(true) {
		if !t.stopped {
			t.fn()
		}
	}
}

// ticks fires n rounds of recurring timers.
func (s *fakeScheduler) ticks(n int) {
	for i := 0; i < n; i++ {
		s.tick()
	}
}

// elapse fires every pending one-shot timer.
func (s *fakeScheduler) elapse() {
	for _, t := range s.active(false) {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

// flush runs queued ledger work and then its continuations, repeating
// until nothing is left.
func (s *fakeScheduler) flush() {
	for len(s.work) > 0 {
		batch := s.work
		s.work = nil
		for _, w := range batch {
			if then := w(context.Background()); then != nil {
				then()
			}
		}
	}
}

func (s *fakeScheduler) recurring() int {
	return len(s.active(true))
}

type recorded struct {
	to      string
	event   string
	payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) Publish(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{event: event, payload: payload})
}

func (r *recorder) Send(connID string, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{to: connID, event: event, payload: payload})
}

func (r *recorder) find(to, event string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, e := range r.events {
		if e.to == to && e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last(to, event string) (recorded, bool) {
	found := r.find(to, event)
	if len(found) == 0 {
		return recorded{}, false
	}
	return found[len(found)-1], true
}

// fixedSeed replays a scripted draw sequence.
type fixedSeed struct {
	draws  []float64
	cursor int
}

func (f *fixedSeed) Float64() float64 {
	if f.cursor >= len(f.draws) {
		return 0
	}
	v := f.draws[f.cursor]
	f.cursor++
	return v
}

func (f *fixedSeed) Commitment() string {
	return "commitment"
}

func (f *fixedSeed) Reveal() Reveal {
	return Reveal{ServerSeed: "server", ClientSeed: "client"}
}

func seeded(draws ...float64) func(int) RoundSeed {
	return func(int) RoundSeed {
		return &fixedSeed{draws: draws}
	}
}

// fakeClock is advanced by hand.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testCrashConfig() config.CrashConfig {
	return config.CrashConfig{
		BettingSeconds: 3,
		FlightTick:     50 * time.Millisecond,
		RestartDelay:   3 * time.Second,
		MinBet:         1,
		MaxBet:         10000,
	}
}

func testRouletteConfig() config.RouletteConfig {
	return config.RouletteConfig{
		BettingSeconds: 4,
		CountdownAt:    2,
		SpinDuration:   6 * time.Second,
		ResultDelay:    5 * time.Second,
		MinBet:         1,
		MaxBet:         10000,
	}
}

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	err    error
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, append([]byte{}, data...))
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) snapshot() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte{}, c.frames...)
}
