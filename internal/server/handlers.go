package server

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"arcade/internal/ledger"
)

type UserRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

func (s *FiberServer) parseUser(c *fiber.Ctx) (string, bool) {
	var req UserRequest
	if err := c.BodyParser(&req); err != nil {
		return "", false
	}
	if err := s.validate.Struct(req); err != nil {
		return "", false
	}
	return req.UserID, true
}

func badUserRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "user_id is required",
	})
}

// getUserHandler returns the account, creating it on first sight.
func (s *FiberServer) getUserHandler(c *fiber.Ctx) error {
	userID, ok := s.parseUser(c)
	if !ok {
		return badUserRequest(c)
	}

	acc, err := s.store.Account(c.Context(), userID)
	if err != nil {
		log.Printf("[API] Failed to load account %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load account",
		})
	}
	return c.JSON(acc)
}

func (s *FiberServer) claimBonusHandler(c *fiber.Ctx) error {
	userID, ok := s.parseUser(c)
	if !ok {
		return badUserRequest(c)
	}

	acc, err := s.store.ClaimBonus(c.Context(), userID, s.cfg.Bonus.Amount, s.cfg.Bonus.Interval)
	if errors.Is(err, ledger.ErrBonusNotReady) {
		current, lookupErr := s.store.Account(c.Context(), userID)
		body := fiber.Map{"error": "Bonus not available yet"}
		if lookupErr == nil && current.LastBonusAt != nil {
			body["next_bonus_at"] = current.BonusReadyAt(s.cfg.Bonus.Interval).UTC().Format(time.RFC3339)
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(body)
	}
	if err != nil {
		log.Printf("[API] Failed to claim bonus for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to claim bonus",
		})
	}

	s.board.Flush()
	log.Printf("[API] User %s claimed bonus of %d", userID, s.cfg.Bonus.Amount)
	return c.JSON(fiber.Map{
		"balance": acc.Balance,
		"bonus":   s.cfg.Bonus.Amount,
	})
}

// leaderboardHandler serves the top accounts, memoized per limit.
func (s *FiberServer) leaderboardHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", LEADERBOARD_LIMIT)
	if limit <= 0 || limit > 100 {
		limit = LEADERBOARD_LIMIT
	}

	key := "leaderboard:" + strconv.Itoa(limit)
	if cached, ok := s.board.Get(key); ok {
		return c.JSON(cached)
	}

	board, err := s.store.Leaderboard(c.Context(), limit)
	if err != nil {
		log.Printf("[API] Failed to load leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load leaderboard",
		})
	}
	s.board.SetDefault(key, board)
	return c.JSON(board)
}
