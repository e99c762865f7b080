package game

import (
	"context"
	"log"
	"time"
)

// Engine is one round state machine. All methods run on the scheduling loop.
type Engine interface {
	Kind() GameKind
	Start()
	Stop()
	Snapshot() interface{}
	// Forget purges the connection's unresolved bets from the live round.
	Forget(connID string)
	// Recover abandons the live round and opens a fresh betting phase.
	Recover(reason interface{})
	// Stalled reports whether the current phase overran its deadline.
	Stalled(now time.Time) bool
}

// SnapshotStore receives the public state of a round on each phase change.
type SnapshotStore interface {
	SaveRound(ctx context.Context, game string, state interface{}) error
}

type engineSet struct {
	engines map[GameKind]Engine
	order   []GameKind
}

func newEngineSet() *engineSet {
	return &engineSet{engines: make(map[GameKind]Engine)}
}

func (s *engineSet) RegisterEngine(engine Engine) {
	if _, exists := s.engines[engine.Kind()]; !exists {
		s.order = append(s.order, engine.Kind())
	}
	s.engines[engine.Kind()] = engine
}

func (s *engineSet) GetEngine(kind GameKind) (Engine, bool) {
	engine, exists := s.engines[kind]
	return engine, exists
}

func (s *engineSet) each(fn func(Engine)) {
	for _, kind := range s.order {
		fn(s.engines[kind])
	}
}

func (s *engineSet) StartAll() {
	s.each(func(e Engine) {
		e.Start()
		log.Printf("[ENGINES] Started %s engine", e.Kind())
	})
}

func (s *engineSet) StopAll() {
	s.each(func(e Engine) {
		e.Stop()
		log.Printf("[ENGINES] Stopped %s engine", e.Kind())
	})
}

func (s *engineSet) ForgetAll(connID string) {
	s.each(func(e Engine) { e.Forget(connID) })
}

func (s *engineSet) RecoverStalled(now time.Time) {
	s.each(func(e Engine) {
		if e.Stalled(now) {
			log.Printf("[ENGINES] %s engine stalled, forcing recovery", e.Kind())
			e.Recover("watchdog: phase deadline exceeded")
		}
	})
}

func saveSnapshot(sched Scheduler, store SnapshotStore, game GameKind, state interface{}) {
	if store == nil {
		return
	}
	sched.Go(func(ctx context.Context) func() {
		if err := store.SaveRound(ctx, string(game), state); err != nil {
			log.Printf("[ENGINES] Failed to store %s snapshot: %v", game, err)
		}
		return nil
	})
}
