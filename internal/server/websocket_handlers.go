package server

import (
	"errors"
	"log/slog"

	"strayland/internal/middleware"
	"strayland/internal/models"
	"strayland/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects plain HTTP requests to the feed socket.
func (s *Server) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return models.RespondWithError(c, fiber.StatusUpgradeRequired,
		models.NewValidationError("WebSocket upgrade required"))
}

// WebSocketFeedHandler streams feed events (post, comment and like updates).
// Viewers do not need a voter identity; when one was resolved it is logged.
// @Summary Realtime feed events
// @Tags realtime
// @Router /ws [get]
func (s *Server) WebSocketFeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		voter, _ := conn.Locals("voterID").(string)

		client, err := s.hub.Register(conn, voter)
		if err != nil {
			reason := "registration failed"
			if errors.Is(err, notifications.ErrHubFull) {
				reason = "server connection limit reached"
			}
			middleware.Logger.Warn("feed websocket rejected",
				slog.String("voter_id", voter),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("feed websocket connected", slog.String("voter_id", voter))

		// The connection is recycled once this handler returns, so wait for
		// the write pump; unregistering in ReadPump closes its channel.
		done := make(chan struct{})
		go func() {
			defer close(done)
			client.WritePump()
		}()
		client.ReadPump()
		<-done
	})
}
