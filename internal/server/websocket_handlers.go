package server

import (
	"encoding/json"
	"log/slog"

	"tdh/internal/featureflags"
	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/moderation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketFeedHandler streams feed and account events to a member.
// Authentication is handled by route middleware and the account is read from
// connection locals.
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		user, ok := conn.Locals(localsUser).(*models.User)
		if !ok || user == nil {
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime events unavailable"}`))
			_ = conn.Close()
			return
		}

		member := moderation.Evaluate(user).Allowed()
		client, err := s.hub.Register(user.ID, conn, member)
		if err != nil {
			middleware.Logger.Warn("websocket registration failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.String("error", err.Error()))
			msg, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		if hello, err := json.Marshal(fiber.Map{
			"type":    "connected",
			"payload": fiber.Map{"user_id": user.ID},
		}); err == nil {
			client.TrySend(hello)
		}

		// Start pumps
		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		// Pending accounts may connect to hear about their approval.
		user := currentUser(c)
		if err := moderation.RequireIdentity(user).Err(); err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !s.featureFlags.Enabled(featureflags.Realtime, user.ID) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Realtime feed"))
		}
		return upgrade(c)
	}
}
