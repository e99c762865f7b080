package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"
)

type Config struct {
	Port            string
	LedgerDriver    string
	StartingBalance int64
	MigrationsPath  string
	AutoMigrate     bool

	Crash    CrashConfig
	Roulette RouletteConfig
	Bonus    BonusConfig
}

// CrashConfig holds the crash round timings and stake limits.
type CrashConfig struct {
	BettingSeconds int
	FlightTick     time.Duration
	RestartDelay   time.Duration
	MinBet         int64
	MaxBet         int64
}

// RouletteConfig holds the roulette round timings and stake limits.
// CountdownAt is the remaining betting time (seconds) at which the
// cosmetic countdown sub-phase starts.
type RouletteConfig struct {
	BettingSeconds int
	CountdownAt    int
	SpinDuration   time.Duration
	ResultDelay    time.Duration
	MinBet         int64
	MaxBet         int64
}

type BonusConfig struct {
	Amount   int64
	Interval time.Duration
}

func Load() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		LedgerDriver:    getEnv("LEDGER_DRIVER", LedgerPostgres),
		StartingBalance: int64(getEnvAsInt("STARTING_BALANCE", 100)),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		AutoMigrate:     getEnvAsBool("AUTO_MIGRATE", false),
		Crash: CrashConfig{
			BettingSeconds: getEnvAsInt("CRASH_BETTING_SECONDS", 10),
			FlightTick:     getEnvAsDuration("CRASH_TICK", 50*time.Millisecond),
			RestartDelay:   getEnvAsDuration("CRASH_RESTART_DELAY", 3*time.Second),
			MinBet:         int64(getEnvAsInt("CRASH_MIN_BET", 1)),
			MaxBet:         int64(getEnvAsInt("CRASH_MAX_BET", 10000)),
		},
		Roulette: RouletteConfig{
			BettingSeconds: getEnvAsInt("ROULETTE_BETTING_SECONDS", 20),
			CountdownAt:    getEnvAsInt("ROULETTE_COUNTDOWN_AT", 5),
			SpinDuration:   getEnvAsDuration("ROULETTE_SPIN_DURATION", 6*time.Second),
			ResultDelay:    getEnvAsDuration("ROULETTE_RESULT_DELAY", 5*time.Second),
			MinBet:         int64(getEnvAsInt("ROULETTE_MIN_BET", 1)),
			MaxBet:         int64(getEnvAsInt("ROULETTE_MAX_BET", 10000)),
		},
		Bonus: BonusConfig{
			Amount:   int64(getEnvAsInt("BONUS_AMOUNT", 100)),
			Interval: getEnvAsDuration("BONUS_INTERVAL", 24*time.Hour),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts Go duration strings ("750ms", "3s").
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
