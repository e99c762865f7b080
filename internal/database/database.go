package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"

	"arcade/internal/ledger"
)

// Service is the PostgreSQL ledger.
type Service interface {
	ledger.Store
	Pool() *pgxpool.Pool
	Health() map[string]string
	Close() error
}

type service struct {
	pool            *pgxpool.Pool
	startingBalance int64
}

var (
	database   = os.Getenv("BLUEPRINT_DB_DATABASE")
	password   = os.Getenv("BLUEPRINT_DB_PASSWORD")
	username   = os.Getenv("BLUEPRINT_DB_USERNAME")
	port       = os.Getenv("BLUEPRINT_DB_PORT")
	host       = os.Getenv("BLUEPRINT_DB_HOST")
	schema     = os.Getenv("BLUEPRINT_DB_SCHEMA")
	dbInstance *service

	// StartingBalance seeds accounts created on first sight.
	StartingBalance int64 = 100
)

func connString() string {
	s := schema
	if s == "" {
		s = "public"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s", username, password, host, port, database, s)
}

// New returns the shared pool, connecting on first use.
func New() Service {
	if dbInstance != nil {
		return dbInstance
	}

	config, err := pgxpool.ParseConfig(connString())
	if err != nil {
		log.Fatalf("[DB] Invalid connection string: %v", err)
	}
	config.MaxConns = 30
	config.MinConns = 2
	config.MaxConnLifetime = 45 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.RuntimeParams["application_name"] = "arcade"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Fatalf("[DB] Failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[DB] Failed to reach database %s at %s:%s: %v", database, host, port, err)
	}

	log.Printf("[DB] Connected to database: %s", database)

	dbInstance = &service{
		pool:            pool,
		startingBalance: StartingBalance,
	}
	return dbInstance
}

func (s *service) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Printf("[DB] Health check failed: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)

	if poolStats.AcquiredConns() > poolStats.MaxConns()*8/10 {
		stats["message"] = "The database is experiencing heavy load."
	}

	return stats
}

func (s *service) Close() error {
	log.Printf("[DB] Disconnected from database: %s", database)
	s.pool.Close()
	dbInstance = nil
	return nil
}

// Debit removes amount only if the balance covers it. An unknown user
// has no funds.
func (s *service) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	const op = "database.Debit"

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ledger.ErrInvalidAmount)
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ledger.ErrInsufficientFunds)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

func (s *service) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	const op = "database.Credit"

	if amount <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ledger.ErrInvalidAmount)
	}

	var balance int64
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance`, userID, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

func (s *service) Balance(ctx context.Context, userID string) (int64, error) {
	const op = "database.Balance"

	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance FROM users WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

func (s *service) RecordOutcome(ctx context.Context, game, value string) error {
	if _, err := s.pool.Exec(ctx, `INSERT INTO game_history (game, value) VALUES ($1, $2)`, game, value); err != nil {
		return fmt.Errorf("database.RecordOutcome: %w", err)
	}
	return nil
}

// RecordPlay folds one settled bet into the user's lifetime stats.
func (s *service) RecordPlay(ctx context.Context, play ledger.Play) error {
	const op = "database.RecordPlay"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	wins, won, best := 0, int64(0), 0.0
	if play.Won {
		wins, won, best = 1, play.WinAmount, play.Multiplier
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users SET
			total_games = total_games + 1,
			total_wins = total_wins + $2,
			total_bets_amount = total_bets_amount + $3,
			total_wins_amount = total_wins_amount + $4,
			best_multiplier = GREATEST(best_multiplier, $5),
			updated_at = NOW()
		WHERE user_id = $1`, play.UserID, wins, play.Stake, won, best)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ledger.ErrAccountNotFound)
	}

	if play.Won && play.Multiplier > 0 {
		if _, err := tx.Exec(ctx, `INSERT INTO user_multipliers (user_id, multiplier) VALUES ($1, $2)`, play.UserID, play.Multiplier); err != nil {
			return fmt.Errorf("%s: multiplier: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *service) ensureAccount(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, s.startingBalance)
	return err
}

// Account returns the user's account, creating it at the starting balance.
func (s *service) Account(ctx context.Context, userID string) (*ledger.Account, error) {
	const op = "database.Account"

	if err := s.ensureAccount(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: create: %w", op, err)
	}

	acc := &ledger.Account{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT balance, total_games, total_wins, total_bets_amount, total_wins_amount, best_multiplier, last_bonus_at
		FROM users WHERE user_id = $1`, userID).Scan(
		&acc.Balance,
		&acc.TotalGames,
		&acc.TotalWins,
		&acc.TotalStaked,
		&acc.TotalWon,
		&acc.BestMultiplier,
		&acc.LastBonusAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT multiplier FROM user_multipliers
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, ledger.MultiplierLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: multipliers: %w", op, err)
	}
	acc.Multipliers, err = pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("%s: multipliers: %w", op, err)
	}
	return acc, nil
}

func (s *service) ClaimBonus(ctx context.Context, userID string, amount int64, interval time.Duration) (*ledger.Account, error) {
	const op = "database.ClaimBonus"

	if err := s.ensureAccount(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: create: %w", op, err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET balance = balance + $2, last_bonus_at = NOW(), updated_at = NOW()
		WHERE user_id = $1
		AND (last_bonus_at IS NULL OR last_bonus_at <= NOW() - make_interval(secs => $3))`,
		userID, amount, interval.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s: %w", op, ledger.ErrBonusNotReady)
	}
	return s.Account(ctx, userID)
}

func (s *service) Leaderboard(ctx context.Context, limit int) ([]ledger.Account, error) {
	const op = "database.Leaderboard"

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, balance, total_games, total_wins, total_bets_amount, total_wins_amount, best_multiplier
		FROM users
		ORDER BY balance DESC, user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	board := []ledger.Account{}
	for rows.Next() {
		var acc ledger.Account
		if err := rows.Scan(&acc.UserID, &acc.Balance, &acc.TotalGames, &acc.TotalWins, &acc.TotalStaked, &acc.TotalWon, &acc.BestMultiplier); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		board = append(board, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return board, nil
}

func (s *service) RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error) {
	const op = "database.RecentOutcomes"

	if limit <= 0 || limit > ledger.HistoryLimit {
		limit = ledger.HistoryLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT value FROM game_history
		WHERE game = $1
		ORDER BY id DESC
		LIMIT $2`, game, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return values, nil
}
