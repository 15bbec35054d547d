package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/omochice/support-chat/pkg/protocol"
)

// Option configures a Hub.
type Option func(*Hub)

// WithAckUndeliverable makes the hub answer a message that has no route with
// an undeliverable event. By default such messages are dropped silently.
func WithAckUndeliverable(enabled bool) Option {
	return func(h *Hub) {
		h.ackUndeliverable = enabled
	}
}

// WithOutgoingBuffer sets the outgoing queue length of clients made by NewClient.
func WithOutgoingBuffer(n int) Option {
	return func(h *Hub) {
		h.outgoingBuffer = n
	}
}

// Hub manages all connected clients and turns their events into registry
// updates and deliveries. All transports share a single Hub instance.
type Hub struct {
	registry *Registry
	notifier *Notifier
	tracker  *Tracker
	router   *Router

	ackUndeliverable bool
	outgoingBuffer   int

	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a new Hub with an empty registry.
func NewHub(opts ...Option) *Hub {
	registry := NewRegistry()
	notifier := NewNotifier(registry)
	h := &Hub{
		registry:       registry,
		notifier:       notifier,
		tracker:        NewTracker(registry, notifier),
		router:         NewRouter(registry),
		outgoingBuffer: DefaultOutgoingBuffer,
		clients:        make(map[*Client]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry returns the session registry behind the hub.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// NewClient wraps conn in a Client using the hub's queue settings.
func (h *Hub) NewClient(conn Conn, codec protocol.Codec) *Client {
	return NewClient(conn, codec, h.outgoingBuffer)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs client until its connection ends or ctx is cancelled. Events are
// read and dispatched in arrival order on the calling goroutine while a
// second goroutine writes queued events. When reading stops the party is
// taken offline and the connection is closed.
func (h *Hub) Serve(ctx context.Context, client *Client) {
	h.Register(client)
	defer h.Unregister(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ctx, client)
	}()

	h.readLoop(ctx, client)

	h.tracker.Disconnect(client)
	_ = client.Close()
	wg.Wait()
}

func (h *Hub) readLoop(ctx context.Context, client *Client) {
	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				select {
				case <-client.Done():
				default:
					log.Printf("chat: error reading from %s: %v", client.Conn.RemoteAddr(), err)
				}
			}
			return
		}

		ev, err := client.Codec.Decode(data)
		if err != nil {
			log.Printf("chat: failed to decode event from %s: %v", client.Conn.RemoteAddr(), err)
			client.Send(protocol.Error(CodeInvalidEvent, "invalid event payload"))
			continue
		}
		h.Dispatch(client, ev)
	}
}

func (h *Hub) writeLoop(ctx context.Context, client *Client) {
	for {
		select {
		case <-client.Done():
			return
		case ev := <-client.outgoing:
			data, err := client.Codec.Encode(ev)
			if err != nil {
				log.Printf("chat: failed to encode %s event: %v", ev.Type, err)
				continue
			}
			if err := client.Conn.Write(ctx, data); err != nil {
				log.Printf("chat: failed to write to %s: %v", client.Conn.RemoteAddr(), err)
				_ = client.Close()
				return
			}
		}
	}
}

// Dispatch handles one inbound event from client.
func (h *Hub) Dispatch(client *Client, ev protocol.Event) {
	switch ev.Type {
	case protocol.EventTypeLogin:
		h.handleLogin(client, ev)
	case protocol.EventTypeSelectUser:
		h.handleSelectUser(client, ev)
	case protocol.EventTypeMessage:
		h.handleMessage(client, ev)
	default:
		client.Send(protocol.Error(CodeUnsupported, fmt.Sprintf("%s events are not accepted from clients", ev.Type)))
	}
}

func (h *Hub) handleLogin(client *Client, ev protocol.Event) {
	identity := strings.TrimSpace(ev.Identity)
	session, err := h.tracker.Login(client, identity, strings.TrimSpace(ev.Name), ev.IsAdmin)
	if err != nil {
		client.Send(errorEvent(err))
		return
	}
	client.setIdentity(session)
}

func (h *Hub) handleSelectUser(client *Client, ev protocol.Event) {
	err := h.notifier.NotifySelected(client, strings.TrimSpace(ev.Identity))
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownSession):
		log.Printf("chat: ignoring selection: %v", err)
	default:
		log.Printf("chat: rejected selection from %s: %v", client.Conn.RemoteAddr(), err)
		client.Send(errorEvent(err))
	}
}

func (h *Hub) handleMessage(client *Client, ev protocol.Event) {
	identity, name, isAdmin, ok := client.Identity()
	if !ok {
		client.Send(errorEvent(ErrNotLoggedIn))
		return
	}
	if ev.Message == nil {
		client.Send(protocol.Error(CodeInvalidEvent, "message event without message"))
		return
	}

	msg := Message{
		ID:        ulid.Make().String(),
		FromAdmin: isAdmin,
		Target:    strings.TrimSpace(ev.Message.Target),
		Body:      ev.Message.Body,
		Name:      name,
		SentAt:    time.Now().UTC(),
	}
	if !isAdmin {
		if msg.Target != "" && msg.Target != identity {
			log.Printf("chat: %q sent a message targeting %q, using own identity", identity, msg.Target)
		}
		msg.Target = identity
	}

	if err := h.router.Route(msg); err != nil {
		log.Printf("chat: dropped message %s from %q: %v", msg.ID, identity, err)
		if h.ackUndeliverable {
			wire := msg.toWire()
			client.Send(protocol.Event{Type: protocol.EventTypeUndeliverable, Message: &wire})
		}
	}
}
