package server

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const MAX_MESSAGE_SIZE = 4096

func (s *FiberServer) upgradeHandler(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// gameWebSocketHandler owns one connection: it registers it, relays every
// inbound frame to the game loop and unregisters it when reading fails.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	connID := uuid.NewString()
	userID := conn.Query("user_id", "")

	conn.SetReadLimit(MAX_MESSAGE_SIZE)
	s.gameManager.Connect(connID, conn, userID)
	defer s.gameManager.Disconnect(connID)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for %s: %v", connID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.gameManager.Handle(connID, message)
	}
}
