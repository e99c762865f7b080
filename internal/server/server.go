package server

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/stdlib"
	gocache "github.com/patrickmn/go-cache"

	"arcade/internal/cache"
	"arcade/internal/config"
	"arcade/internal/database"
	"arcade/internal/game"
	"arcade/internal/ledger"
)

const (
	LEADERBOARD_TTL   = 15 * time.Second
	LEADERBOARD_LIMIT = 10
)

type healthChecker interface {
	Health() map[string]string
	Close() error
}

type FiberServer struct {
	*fiber.App

	cfg         config.Config
	db          healthChecker
	cache       cache.Service
	store       ledger.Store
	gameManager *game.Manager
	gameHub     *game.Hub
	board       *gocache.Cache
	validate    *validator.Validate
}

// New wires the ledger selected by LEDGER_DRIVER, the optional Redis cache
// and both round engines, and starts the game loop.
func New(cfg config.Config) *FiberServer {
	redisService := cache.New()

	var (
		db    database.Service
		store ledger.Store
	)
	switch cfg.LedgerDriver {
	case config.LedgerMemory:
		log.Println("[SERVER] Using in-memory ledger")
		store = ledger.NewMemory(cfg.StartingBalance)
	default:
		database.StartingBalance = cfg.StartingBalance
		db = database.New()
		if cfg.AutoMigrate {
			if err := database.RunMigrations(stdlib.OpenDBFromPool(db.Pool()), cfg.MigrationsPath); err != nil {
				log.Fatalf("[SERVER] Migration failed: %v", err)
			}
		}
		store = db
	}

	return newServer(cfg, store, db, redisService)
}

func newServer(cfg config.Config, store ledger.Store, db healthChecker, redisService cache.Service) *FiberServer {
	var snapshots game.SnapshotStore
	if redisService != nil {
		store = ledger.NewCached(store, redisService)
		snapshots = redisService
	}

	hub := game.NewHub()
	manager := game.NewManager(cfg, hub, store, snapshots)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "arcade",
			AppName:       "arcade",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		cfg:         cfg,
		db:          db,
		cache:       redisService,
		store:       store,
		gameManager: manager,
		gameHub:     hub,
		board:       gocache.New(LEADERBOARD_TTL, time.Minute),
		validate:    validator.New(),
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws"
		},
	}))

	manager.Start()
	log.Println("[SERVER] Crash and roulette engines started")

	return server
}

// Shutdown stops the game loop before closing storage so in-flight ledger
// calls can finish.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if err := s.App.Shutdown(); err != nil {
		log.Printf("[SERVER] HTTP shutdown error: %v", err)
	}

	if s.gameManager != nil {
		s.gameManager.Stop()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
