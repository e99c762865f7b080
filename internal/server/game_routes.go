package server

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"arcade/internal/ledger"
)

// RegisterGameRoutes registers the read-only game endpoints.
func (s *FiberServer) RegisterGameRoutes(api fiber.Router) {
	api.Get("/game/state", s.getGameStateHandler)
	api.Get("/game/history", s.getHistoryHandler)
	api.Get("/online", s.onlineHandler)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	state, ok := s.gameManager.State()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Game loop is not running",
		})
	}
	return c.JSON(state)
}

func (s *FiberServer) getHistoryHandler(c *fiber.Ctx) error {
	gameKind := c.Query("game", ledger.GameCrash)
	if gameKind != ledger.GameCrash && gameKind != ledger.GameRoulette {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "game must be crash or roulette",
		})
	}

	history, err := s.store.RecentOutcomes(c.Context(), gameKind, ledger.HistoryLimit)
	if err != nil {
		log.Printf("[API] Failed to load %s history: %v", gameKind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}
	return c.JSON(fiber.Map{
		"game":    gameKind,
		"history": history,
	})
}

func (s *FiberServer) onlineHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"online": s.gameManager.Online(),
	})
}
