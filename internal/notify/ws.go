package notify

import (
	"context"

	"github.com/coder/websocket"
)

// wsChannel adapts a websocket connection to the Channel interface.
type wsChannel struct {
	conn *websocket.Conn
}

// NewWebSocketChannel wraps a websocket connection as a notifier Channel.
func NewWebSocketChannel(conn *websocket.Conn) Channel {
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Send(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session ended")
}
