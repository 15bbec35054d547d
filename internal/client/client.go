// Package client defines the common interface for chat clients.
package client

import (
	"context"
	"errors"

	"github.com/omochice/support-chat/pkg/protocol"
)

// ErrNotConnected is returned when sending before Connect or after Close.
var ErrNotConnected = errors.New("not connected to server")

// Client defines the interface for chat clients.
// Both TCP and WebSocket implementations satisfy this interface.
type Client interface {
	Connect(ctx context.Context) error
	Close()
	IsConnected() bool
	Login(identity, name string, isAdmin bool) error
	// Send posts body to target. Users may leave target empty; the server
	// addresses user messages to the admin.
	Send(target, body string) error
	SelectUser(identity string) error
	// Events delivers server events and is closed when the connection ends.
	Events() <-chan protocol.Event
}
