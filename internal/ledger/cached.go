package ledger

import (
	"context"
	"log"
)

// History is a fast recent-outcome list kept next to the primary store.
type History interface {
	PushOutcome(ctx context.Context, game, value string) error
	RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error)
}

// Cached mirrors outcome history into a History and serves history reads
// from it, falling back to the primary store when the cache misses or fails.
type Cached struct {
	Store
	history History
}

func NewCached(store Store, history History) Store {
	if history == nil {
		return store
	}
	return &Cached{Store: store, history: history}
}

func (c *Cached) RecordOutcome(ctx context.Context, game, value string) error {
	if err := c.Store.RecordOutcome(ctx, game, value); err != nil {
		return err
	}
	if err := c.history.PushOutcome(ctx, game, value); err != nil {
		log.Printf("[LEDGER] History cache push failed for %s: %v", game, err)
	}
	return nil
}

func (c *Cached) RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error) {
	values, err := c.history.RecentOutcomes(ctx, game, limit)
	if err == nil && len(values) > 0 {
		return values, nil
	}
	if err != nil {
		log.Printf("[LEDGER] History cache read failed for %s: %v", game, err)
	}
	return c.Store.RecentOutcomes(ctx, game, limit)
}
