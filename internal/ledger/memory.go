package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Store. It backs LEDGER_DRIVER=memory and the
// engine tests.
type Memory struct {
	mu              sync.Mutex
	startingBalance int64
	accounts        map[string]*Account
	outcomes        map[string][]string
	now             func() time.Time

	// FailWrites makes every balance mutation fail with the given error.
	FailWrites error
}

func NewMemory(startingBalance int64) *Memory {
	return &Memory{
		startingBalance: startingBalance,
		accounts:        make(map[string]*Account),
		outcomes:        make(map[string][]string),
		now:             time.Now,
	}
}

// SetBalance creates or overwrites an account balance.
func (m *Memory) SetBalance(userID string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account(userID).Balance = balance
}

func (m *Memory) account(userID string) *Account {
	acc, ok := m.accounts[userID]
	if !ok {
		acc = &Account{UserID: userID, Balance: m.startingBalance, Multipliers: []float64{}}
		m.accounts[userID] = acc
	}
	return acc
}

func (m *Memory) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	const op = "ledger.Memory.Debit"

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return 0, fmt.Errorf("%s: %w", op, m.FailWrites)
	}
	acc, ok := m.accounts[userID]
	if !ok || acc.Balance < amount {
		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}
	acc.Balance -= amount
	return acc.Balance, nil
}

func (m *Memory) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	const op = "ledger.Memory.Credit"

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites != nil {
		return 0, fmt.Errorf("%s: %w", op, m.FailWrites)
	}
	acc, ok := m.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	acc.Balance += amount
	return acc.Balance, nil
}

func (m *Memory) Balance(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("ledger.Memory.Balance: %w", ErrAccountNotFound)
	}
	return acc.Balance, nil
}

func (m *Memory) RecordOutcome(ctx context.Context, game, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append([]string{value}, m.outcomes[game]...)
	if len(list) > HistoryLimit {
		list = list[:HistoryLimit]
	}
	m.outcomes[game] = list
	return nil
}

func (m *Memory) RecordPlay(ctx context.Context, play Play) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[play.UserID]
	if !ok {
		return fmt.Errorf("ledger.Memory.RecordPlay: %w", ErrAccountNotFound)
	}
	acc.TotalGames++
	acc.TotalStaked += play.Stake
	if play.Won {
		acc.TotalWins++
		acc.TotalWon += play.WinAmount
		if play.Multiplier > 0 {
			acc.Multipliers = append([]float64{play.Multiplier}, acc.Multipliers...)
			if len(acc.Multipliers) > MultiplierLimit {
				acc.Multipliers = acc.Multipliers[:MultiplierLimit]
			}
			if play.Multiplier > acc.BestMultiplier {
				acc.BestMultiplier = play.Multiplier
			}
		}
	}
	return nil
}

func (m *Memory) Account(ctx context.Context, userID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := *m.account(userID)
	acc.Multipliers = append([]float64{}, acc.Multipliers...)
	return &acc, nil
}

func (m *Memory) ClaimBonus(ctx context.Context, userID string, amount int64, interval time.Duration) (*Account, error) {
	const op = "ledger.Memory.ClaimBonus"

	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.account(userID)
	now := m.now()
	if acc.LastBonusAt != nil && now.Before(acc.BonusReadyAt(interval)) {
		return nil, fmt.Errorf("%s: %w", op, ErrBonusNotReady)
	}
	acc.Balance += amount
	acc.LastBonusAt = &now

	out := *acc
	return &out, nil
}

func (m *Memory) Leaderboard(ctx context.Context, limit int) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	board := make([]Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		board = append(board, *acc)
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Balance == board[j].Balance {
			return board[i].UserID < board[j].UserID
		}
		return board[i].Balance > board[j].Balance
	})
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

func (m *Memory) RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.outcomes[game]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return append([]string{}, list...), nil
}
