// Package tcp provides a TCP client for the chat server.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/omochice/support-chat/internal/client"
	"github.com/omochice/support-chat/pkg/protocol"
)

var _ client.Client = (*Client)(nil)

// Client represents a TCP chat client
type Client struct {
	address string
	conn    net.Conn
	events  chan protocol.Event
	mu      sync.RWMutex
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// New creates a new Client instance
func New(address string) *Client {
	return &Client{
		address: address,
		events:  make(chan protocol.Event, 16),
		done:    make(chan struct{}),
	}
}

// Connect establishes a connection to the server
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveEvents(conn)

	return nil
}

// Close closes the connection to the server
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
}

// IsConnected returns whether the client is connected
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

// Events returns the channel for receiving server events
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

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteFrame(conn, data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// receiveEvents reads frames until the connection ends, then closes Events.
func (c *Client) receiveEvents(conn net.Conn) {
	defer c.wg.Done()
	defer close(c.events)

	reader := bufio.NewReader(conn)
	for {
		data, err := protocol.ReadFrame(reader, protocol.DefaultMaxFrameSize)
		if err != nil {
			select {
			case <-c.done:
			default:
				if !errors.Is(err, io.EOF) {
					log.Printf("Error reading from server: %v", err)
				}
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
		case <-c.done:
			return
		}
	}
}
