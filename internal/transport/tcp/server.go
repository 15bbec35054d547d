package tcp

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/pkg/protocol"
)

// Server handles TCP connections and delegates to Hub.
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

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts Options) *Server {
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

// Start starts accepting TCP connections. It blocks until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
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

	log.Printf("TCP server started on %s", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				log.Printf("Failed to accept TCP connection: %v", err)
				continue
			}
		}

		client := s.hub.NewClient(NewConn(conn, s.opts), protocol.Binary)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Serve(s.ctx, client)
		}()
	}
}

// Stop stops the TCP server and closes every connection it accepted.
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

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
