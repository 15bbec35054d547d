// Package tcp provides TCP transport implementation for the chat server.
// Events travel as uvarint length-prefixed protobuf frames.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/omochice/support-chat/pkg/protocol"
)

// Options tunes framed TCP connections.
type Options struct {
	MaxFrameSize int
	WriteTimeout time.Duration
}

func (o Options) maxFrameSize() int {
	if o.MaxFrameSize <= 0 {
		return protocol.DefaultMaxFrameSize
	}
	return o.MaxFrameSize
}

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	opts   Options
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn, opts Options) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn), opts)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already consumed
// into reader, as happens after protocol detection.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader, opts Options) *Conn {
	return &Conn{conn: conn, reader: reader, opts: opts}
}

// Read implements chat.Conn.
// Reads one length-prefixed frame from the TCP connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	return protocol.ReadFrame(c.reader, c.opts.maxFrameSize())
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	if c.opts.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return protocol.WriteFrame(c.conn, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
