// Package server runs the relay on a single port that accepts both framed TCP
// clients and WebSocket clients, telling them apart by their first bytes.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/internal/transport/tcp"
	"github.com/omochice/support-chat/pkg/protocol"
)

// DefaultHandshakeTimeout bounds protocol detection and the WebSocket upgrade.
const DefaultHandshakeTimeout = 10 * time.Second

// Options tunes the unified server.
type Options struct {
	MaxFrameSize     int
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// Server represents a server that handles both TCP and WebSocket connections
// on one listener.
type Server struct {
	address  string
	opts     Options
	hub      *chat.Hub
	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Server instance
func New(address string, hub *chat.Hub, opts Options) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: address,
		opts:    opts,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
	}
}

// Start listens and accepts connections until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		listener.Close()
		return nil
	default:
	}
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Unified server started on %s (TCP and WebSocket)", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				log.Printf("Failed to accept connection: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Stop stops the unified server
func (s *Server) Stop() {
	close(s.quit)
	s.cancel()
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// handleConnection determines whether the connection is HTTP (WebSocket) or TCP
func (s *Server) handleConnection(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(s.opts.HandshakeTimeout)); err != nil {
		log.Printf("Failed to set handshake deadline: %v", err)
		conn.Close()
		return
	}

	kind, reader, err := detectProtocol(conn)
	if err != nil {
		log.Printf("Failed to peek connection from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	var client *chat.Client
	switch kind {
	case protocolHTTP:
		client, err = s.upgrade(&bufferedConn{Conn: conn, reader: reader})
		if err != nil {
			log.Printf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			return
		}
	default:
		client = s.hub.NewClient(tcp.NewConnWithReader(conn, reader, tcp.Options{
			MaxFrameSize: s.opts.MaxFrameSize,
			WriteTimeout: s.opts.WriteTimeout,
		}), protocol.Binary)
	}

	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		log.Printf("Failed to clear handshake deadline: %v", err)
		conn.Close()
		return
	}

	s.hub.Serve(s.ctx, client)
}

// upgrade performs the WebSocket handshake for a request to /ws. The format
// query parameter picks the codec, as on the dedicated WebSocket server.
func (s *Server) upgrade(conn *bufferedConn) (*chat.Client, error) {
	codec := protocol.Binary
	upgrader := ws.Upgrader{
		OnRequest: func(uri []byte) error {
			parsed, err := url.ParseRequestURI(string(uri))
			if err != nil {
				return ws.RejectConnectionError(ws.RejectionStatus(http.StatusBadRequest))
			}
			if parsed.Path != "/ws" {
				return ws.RejectConnectionError(ws.RejectionStatus(http.StatusNotFound))
			}
			selected, err := protocol.CodecByName(parsed.Query().Get("format"))
			if err != nil {
				return ws.RejectConnectionError(
					ws.RejectionStatus(http.StatusBadRequest),
					ws.RejectionReason(err.Error()),
				)
			}
			codec = selected
			return nil
		},
	}
	if _, err := upgrader.Upgrade(conn); err != nil {
		return nil, err
	}

	op := ws.OpBinary
	if codec == protocol.JSON {
		op = ws.OpText
	}
	return s.hub.NewClient(newWSConn(conn, op, s.opts), codec), nil
}
