package ws

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/pkg/protocol"
)

// Options tunes the WebSocket server.
type Options struct {
	MaxFrameSize int
	WriteTimeout time.Duration
	// AllowedOrigins lists the Origin headers accepted on upgrade. Empty accepts any origin.
	AllowedOrigins []string
}

// Server handles WebSocket connections and delegates to Hub.
//
// Clients connect to /ws. Frames are binary protobuf events unless the
// request carries ?format=json, in which case text frames with JSON events
// are used.
type Server struct {
	address  string
	opts     Options
	hub      *chat.Hub
	upgrader websocket.Upgrader
	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		opts:    opts,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start starts accepting WebSocket connections. It blocks until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	log.Printf("WebSocket server started on %s", listener.Addr().String())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the WebSocket server and closes every hijacked connection.
func (s *Server) Stop() {
	s.cancel()
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server != nil {
		server.Shutdown(context.Background())
	}
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

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	codec, err := protocol.CodecByName(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to accept WebSocket connection: %v", err)
		return
	}
	if s.opts.MaxFrameSize > 0 {
		wsConn.SetReadLimit(int64(s.opts.MaxFrameSize))
	}

	messageType := websocket.BinaryMessage
	if codec == protocol.JSON {
		messageType = websocket.TextMessage
	}
	conn := NewConn(wsConn, r.RemoteAddr, messageType)
	conn.writeTimeout = s.opts.WriteTimeout

	// Shutdown does not track hijacked connections; wg.Add happens under mu
	// so Stop either waits for this client or this handler sees it stopped.
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	client := s.hub.NewClient(conn, codec)
	go func() {
		defer s.wg.Done()
		s.hub.Serve(s.ctx, client)
	}()
}
