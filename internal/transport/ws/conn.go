// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// Conn adapts gorilla/websocket to chat.Conn interface.
type Conn struct {
	conn         *websocket.Conn
	remoteAddr   string
	messageType  int
	writeTimeout time.Duration
}

// NewConn wraps a websocket.Conn. An empty addr falls back to the socket's
// remote address; messageType is websocket.BinaryMessage or
// websocket.TextMessage.
func NewConn(conn *websocket.Conn, addr string, messageType int) *Conn {
	return &Conn{conn: conn, remoteAddr: addr, messageType: messageType}
}

// Read implements chat.Conn.
// A normal close from the peer is reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(c.messageType, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	if c.remoteAddr == "" {
		return c.conn.RemoteAddr().String()
	}
	return c.remoteAddr
}
