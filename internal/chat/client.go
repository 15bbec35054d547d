package chat

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/support-chat/pkg/protocol"
)

// DefaultOutgoingBuffer is the per-client outgoing queue length.
const DefaultOutgoingBuffer = 32

// Handle is the routing view of one live connection. Send must not block:
// it is called while the registry lock is held.
type Handle interface {
	HandleID() string
	Send(ev protocol.Event) bool
}

// Client represents a connected client with transport-agnostic connection.
// It is the Handle the registry stores for the party logged in on it.
type Client struct {
	ID    string
	Conn  Conn
	Codec protocol.Codec

	outgoing  chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu       sync.RWMutex
	identity string
	name     string
	isAdmin  bool
}

// NewClient wraps conn. A nil codec selects protocol.Binary and a
// non-positive buffer selects DefaultOutgoingBuffer.
func NewClient(conn Conn, codec protocol.Codec, buffer int) *Client {
	if codec == nil {
		codec = protocol.Binary
	}
	if buffer <= 0 {
		buffer = DefaultOutgoingBuffer
	}
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Codec:    codec,
		outgoing: make(chan protocol.Event, buffer),
		done:     make(chan struct{}),
	}
}

// HandleID implements Handle.
func (c *Client) HandleID() string {
	return c.ID
}

// Send implements Handle. The event is queued for the write loop; it is
// dropped when the client is closed or its queue is full.
func (c *Client) Send(ev protocol.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outgoing <- ev:
		return true
	default:
		log.Printf("chat: outgoing queue full for %s, dropping %s event", c.Conn.RemoteAddr(), ev.Type)
		return false
	}
}

// Outgoing exposes the queue drained by the write loop.
func (c *Client) Outgoing() <-chan protocol.Event {
	return c.outgoing
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops further sends and closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// Identity returns who logged in on this connection.
func (c *Client) Identity() (identity, name string, isAdmin, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.name, c.isAdmin, c.identity != ""
}

func (c *Client) setIdentity(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = s.Identity
	c.name = s.Name
	c.isAdmin = s.IsAdmin
}
