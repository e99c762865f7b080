package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
)

const (
	REDIS_KEY_HISTORY_PREFIX = "arcade:history:"
	REDIS_KEY_ROUND_PREFIX   = "arcade:round:"

	HISTORY_LIMIT = 50
	ROUND_TTL     = time.Hour
)

// Service is the Redis side of the arcade: the recent-outcome lists and
// the live round snapshots.
type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error

	PushOutcome(ctx context.Context, game, value string) error
	RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error)
	SaveRound(ctx context.Context, game string, state interface{}) error
	Round(ctx context.Context, game string) (json.RawMessage, error)
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

// New connects to Redis. It returns nil when Redis is unreachable; callers
// run without the cache.
func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		log.Println("[CACHE] Running without Redis cache")
		client.Close()
		return nil
	}

	log.Println("[CACHE] Redis connected successfully")

	cacheInstance = &service{
		client: client,
	}

	return cacheInstance
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) Service {
	return &service{client: client}
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] Disconnecting from Redis")
	return s.client.Close()
}

// PushOutcome prepends value to the game's history and trims it to
// HISTORY_LIMIT entries.
func (s *service) PushOutcome(ctx context.Context, game, value string) error {
	key := REDIS_KEY_HISTORY_PREFIX + game
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, HISTORY_LIMIT-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache.PushOutcome %s: %w", game, err)
	}
	return nil
}

// RecentOutcomes returns the newest outcomes first. A missing list is empty.
func (s *service) RecentOutcomes(ctx context.Context, game string, limit int) ([]string, error) {
	if limit <= 0 || limit > HISTORY_LIMIT {
		limit = HISTORY_LIMIT
	}
	values, err := s.client.LRange(ctx, REDIS_KEY_HISTORY_PREFIX+game, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache.RecentOutcomes %s: %w", game, err)
	}
	return values, nil
}

func (s *service) SaveRound(ctx context.Context, game string, state interface{}) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cache.SaveRound marshal %s: %w", game, err)
	}
	if err := s.client.Set(ctx, REDIS_KEY_ROUND_PREFIX+game, data, ROUND_TTL).Err(); err != nil {
		return fmt.Errorf("cache.SaveRound %s: %w", game, err)
	}
	return nil
}

func (s *service) Round(ctx context.Context, game string) (json.RawMessage, error) {
	data, err := s.client.Get(ctx, REDIS_KEY_ROUND_PREFIX+game).Bytes()
	if err != nil {
		return nil, fmt.Errorf("cache.Round %s: %w", game, err)
	}
	return json.RawMessage(data), nil
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
