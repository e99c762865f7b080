package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))
	s.App.Use(logger.New(logger.Config{
		Format: "[HTTP] ${time} ${status} ${latency} ${method} ${path}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")
	api.Post("/user/get", s.getUserHandler)
	api.Post("/user/bonus", s.claimBonusHandler)
	api.Get("/leaderboard", s.leaderboardHandler)

	s.RegisterGameRoutes(api)

	s.App.Use("/ws", s.upgradeHandler)
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"game": fiber.Map{
			"status":            gameStatus(s.gameManager.Running()),
			"connected_clients": s.gameHub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	} else {
		health["database"] = fiber.Map{"status": "memory"}
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	} else {
		health["cache"] = fiber.Map{"status": "disabled"}
	}
	return c.JSON(health)
}

func gameStatus(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}
