// Package ledger defines the persisted-balance boundary used by the round
// engines. Balances are whole units; every debit and credit is keyed by the
// caller supplied user id.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
	ErrBonusNotReady     = errors.New("bonus not ready")
	ErrInvalidAmount     = errors.New("invalid amount")
)

const (
	GameCrash    = "crash"
	GameRoulette = "roulette"
)

// Gateway is what the round engines need from storage.
type Gateway interface {
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	RecordOutcome(ctx context.Context, game, value string) error
	RecordPlay(ctx context.Context, play Play) error
}

// Accounts is the read/CRUD side served over HTTP.
type Accounts interface {
	Account(ctx context.Context, userID string) (*Account, error)
	ClaimBonus(ctx context.Context, userID string, amount int64, interval time.Duration) (*Account, error)
	Leaderboard(ctx context.Context, limit int) ([]Account, error)
	RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error)
}

type Store interface {
	Gateway
	Accounts
}

// Play is one settled bet reported for lifetime statistics.
// Multiplier is the cash-out multiplier for crash wins, zero otherwise.
type Play struct {
	UserID     string  `json:"user_id"`
	Game       string  `json:"game"`
	Stake      int64   `json:"stake"`
	Won        bool    `json:"won"`
	WinAmount  int64   `json:"win_amount"`
	Multiplier float64 `json:"multiplier"`
}

type Account struct {
	UserID         string     `json:"user_id"`
	Balance        int64      `json:"balance"`
	TotalGames     int64      `json:"total_games"`
	TotalWins      int64      `json:"total_wins"`
	TotalStaked    int64      `json:"total_bets_amount"`
	TotalWon       int64      `json:"total_wins_amount"`
	BestMultiplier float64    `json:"best_multiplier"`
	LastBonusAt    *time.Time `json:"last_bonus_at,omitempty"`
	Multipliers    []float64  `json:"multipliers"`
}

const (
	HistoryLimit    = 50
	MultiplierLimit = 100
)

// BonusReadyAt reports when the next bonus can be claimed.
func (a *Account) BonusReadyAt(interval time.Duration) time.Time {
	if a.LastBonusAt == nil {
		return time.Time{}
	}
	return a.LastBonusAt.Add(interval)
}
