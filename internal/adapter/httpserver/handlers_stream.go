package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	livews "github.com/svssathvik7/catalog-pollings-backend/internal/adapter/websocket"
	"github.com/svssathvik7/catalog-pollings-backend/internal/broadcast"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/config"
	apperrors "github.com/svssathvik7/catalog-pollings-backend/internal/platform/errors"
)

func newUpgrader(cfg *config.Config) *websocket.Upgrader {
	return livews.NewUpgrader(cfg.Origins(), !cfg.IsProduction())
}

func (s *Server) registerStreamRoutes() {
	s.echo.GET("/api/sse", s.handleSSE)
	s.echo.GET("/api/ws", s.handleWebSocket)
}

// subscribe registers for one poll, or every poll when the poll parameter is empty.
func (s *Server) subscribe(c echo.Context) (*broadcast.Subscription, error) {
	sub, err := s.hub.Subscribe(broadcast.ForPoll(c.QueryParam("poll")))
	if err != nil {
		return nil, apperrors.UnavailableError("live updates unavailable", err)
	}
	return sub, nil
}

func (s *Server) handleSSE(c echo.Context) error {
	sub, err := s.subscribe(c)
	if err != nil {
		return err
	}
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for frame := range sub.Stream(c.Request().Context()) {
		if _, err := w.Write(frame.SSE()); err != nil {
			slog.DebugContext(c.Request().Context(), "SSE write failed", "subscriber_id", sub.ID().String(), "error", err)
			return nil
		}
		w.Flush()
	}
	return nil
}

func (s *Server) handleWebSocket(c echo.Context) error {
	sub, err := s.subscribe(c)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		sub.Close()
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	livews.Serve(c.Request().Context(), conn, sub, s.clock)
	return nil
}
