// Package ws provides a WebSocket client for the chat server.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/omochice/support-chat/internal/client"
	"github.com/omochice/support-chat/pkg/protocol"
	"nhooyr.io/websocket"
)

var _ client.Client = (*Client)(nil)

// Client represents a WebSocket chat client. Events travel as binary frames.
type Client struct {
	address string
	conn    *websocket.Conn
	events  chan protocol.Event
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	wg      sync.WaitGroup
}

// New creates a new WebSocket Client instance. address is a ws:// URL.
func New(address string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		address: address,
		events:  make(chan protocol.Event, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect establishes a WebSocket connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.address, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	conn.SetReadLimit(protocol.DefaultMaxFrameSize)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents(conn)

	return nil
}

// Close closes the WebSocket connection.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "")
		}
		c.cancel()
	})
	c.wg.Wait()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Login announces the party behind this connection.
func (c *Client) Login(identity, name string, isAdmin bool) error {
	return c.send(protocol.Login(identity, name, isAdmin))
}

// Send sends a chat message.
func (c *Client) Send(target, body string) error {
	return c.send(protocol.Message(protocol.ChatMessage{Target: target, Body: body}))
}

// SelectUser asks for a session and its history. Admin only.
func (c *Client) SelectUser(identity string) error {
	return c.send(protocol.SelectUser(identity))
}

// Events returns the channel for receiving server events.
func (c *Client) Events() <-chan protocol.Event {
	return c.events
}

func (c *Client) send(ev protocol.Event) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return client.ErrNotConnected
	}

	data, err := protocol.Binary.Encode(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := conn.Write(c.ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

func (c *Client) receiveEvents(conn *websocket.Conn) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.IsConnected() && websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				log.Printf("Error reading from server: %v", err)
			}
			return
		}

		ev, err := protocol.Binary.Decode(data)
		if err != nil {
			log.Printf("Failed to decode event: %v", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}
