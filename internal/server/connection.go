package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/support-chat/pkg/protocol"
)

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}

// wsConn adapts an upgraded gobwas/ws connection to chat.Conn.
type wsConn struct {
	conn         *bufferedConn
	op           ws.OpCode
	maxFrameSize int
	writeTimeout time.Duration
	control      wsutil.FrameHandlerFunc
	mu           sync.Mutex
}

func newWSConn(conn *bufferedConn, op ws.OpCode, opts Options) *wsConn {
	maxFrameSize := opts.MaxFrameSize
	if maxFrameSize <= 0 {
		maxFrameSize = protocol.DefaultMaxFrameSize
	}
	c := &wsConn{conn: conn, op: op, maxFrameSize: maxFrameSize, writeTimeout: opts.WriteTimeout}

	// Pong and close replies share the write lock with data frames.
	reply := wsutil.ControlFrameHandler(conn, ws.StateServerSide)
	c.control = func(h ws.Header, r io.Reader) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		return reply(h, r)
	}
	return c
}

// Read returns the next data message. Control frames are answered inline and
// a close frame from the client is reported as io.EOF. A frame header or a
// fragmented message larger than the frame limit fails before its payload
// is buffered.
func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	rd := &wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   int64(c.maxFrameSize),
		OnIntermediate: c.control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, c.readError(err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, rd); err != nil {
				return nil, c.readError(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, c.readError(err)
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(rd, int64(c.maxFrameSize)+1))
		if err != nil {
			return nil, c.readError(err)
		}
		if len(data) > c.maxFrameSize {
			return nil, protocol.ErrFrameTooLarge
		}
		return data, nil
	}
}

func (c *wsConn) readError(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	if errors.Is(err, wsutil.ErrFrameTooLarge) {
		return protocol.ErrFrameTooLarge
	}
	return err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return wsutil.WriteServerMessage(c.conn, c.op, data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
