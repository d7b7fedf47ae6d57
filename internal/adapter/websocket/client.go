// Package websocket serves live poll results over WebSocket connections.
package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/broadcast"
)

const (
	writeDeadline  = 5 * time.Second
	pongDeadline   = 60 * time.Second
	maxMessageSize = 512
)

// NewUpgrader builds the upgrader used by the live results endpoint.
func NewUpgrader(allowedOrigins []string, isDevelopment bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     NewCheckOrigin(allowedOrigins, isDevelopment),
	}
}

type client struct {
	connection *websocket.Conn
	clock      clockwork.Clock
}

// Serve writes the subscription's frames to connection until the peer goes away, the hub
// drops the subscriber or ctx ends. Data frames become text messages carrying the frame JSON;
// keep-alives become ping control frames. Serve closes both the connection and the subscription.
func Serve(ctx context.Context, connection *websocket.Conn, sub *broadcast.Subscription, clock clockwork.Clock) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer connection.Close()

	c := &client{connection: connection, clock: clock}
	c.configureReader()
	go c.readLoop(cancel)

	for frame := range sub.Stream(ctx) {
		if err := c.write(frame); err != nil {
			slog.Debug("WebSocket write failed", "subscriber_id", sub.ID().String(), "error", err)
			return
		}
	}

	if ctx.Err() == nil {
		// The hub let go of us: slow consumer or shutdown.
		c.close("stream ended")
	}
}

func (c *client) write(frame broadcast.Frame) error {
	c.updateWriteDeadline()
	if frame.Event == broadcast.EventPing {
		return c.connection.WriteMessage(websocket.PingMessage, nil)
	}
	msg, err := frame.JSON()
	if err != nil {
		return err
	}
	return c.connection.WriteMessage(websocket.TextMessage, msg)
}

// readLoop drains client messages so control frames are processed, and reports disconnects.
func (c *client) readLoop(disconnected context.CancelFunc) {
	defer disconnected()
	for {
		if _, _, err := c.connection.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) configureReader() {
	c.connection.SetReadLimit(maxMessageSize)
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *client) close(reason string) {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.updateWriteDeadline()
	_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)
}

func (c *client) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *client) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
