// Package chat implements the presence and routing core of the support relay:
// the session registry, the presence tracker, the message router and the
// admin notifier, plus the hub that drives them from transport connections.
package chat

import "context"

// Conn abstracts a bidirectional connection for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// Read reads a single encoded event.
	// Returns io.EOF when connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single encoded event.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
