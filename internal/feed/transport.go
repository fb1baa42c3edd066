package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live streaming connection. The manager owns at most one at a
// time and reads it from a single goroutine.
type Conn interface {
	// ReadMessage blocks until the next inbound message or a read error.
	ReadMessage() ([]byte, error)
	// WriteJSON sends a JSON payload (used for the heartbeat ping).
	WriteJSON(v any) error
	// Close sends a close frame with the given code and closes the socket.
	Close(code int, reason string) error
}

// Dialer opens streaming connections. It is an interface so tests can swap
// in a scripted transport.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// writeWait is the time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// WebSocketDialer dials the price feed over a real WebSocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection to the given URL.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", url, err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla connection to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) WriteJSON(v any) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close(code int, reason string) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
	)
	return c.conn.Close()
}

// closeCode extracts the close status code from a read error, or 0 when the
// error is not a close frame.
func closeCode(err error) int {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return 0
}
