package chat

import (
	"fmt"

	"github.com/omochice/support-chat/pkg/protocol"
)

// Notifier pushes presence and session detail to the admin connection.
type Notifier struct {
	registry *Registry
}

// NewNotifier creates a Notifier that resolves the admin through registry.
func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

// NotifyUpdate sends s to the current admin. It reports false when no admin
// is online; the update is not queued.
func (n *Notifier) NotifyUpdate(s Session) bool {
	n.registry.mu.Lock()
	defer n.registry.mu.Unlock()

	return n.notifyUpdateLocked(s)
}

// NotifyRoster sends the full roster to h.
func (n *Notifier) NotifyRoster(h Handle, sessions []Session) bool {
	return h.Send(protocol.Event{
		Type:     protocol.EventTypeListUsers,
		Sessions: sessionsToWire(sessions),
	})
}

// NotifySelected answers an admin's selection of identity with that session,
// history included. Only the current admin's handle may ask.
func (n *Notifier) NotifySelected(h Handle, identity string) error {
	n.registry.mu.Lock()
	defer n.registry.mu.Unlock()

	admin := n.registry.adminLocked()
	if admin == nil || admin.handle != h {
		return ErrNotAdmin
	}
	s, ok := n.registry.sessions[identity]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, identity)
	}
	wire := s.snapshot().toWire()
	h.Send(protocol.Event{Type: protocol.EventTypeSelectUser, Session: &wire})
	return nil
}

func (n *Notifier) notifyUpdateLocked(s Session) bool {
	admin := n.registry.adminLocked()
	if admin == nil {
		return false
	}
	wire := s.toWire()
	return admin.handle.Send(protocol.Event{Type: protocol.EventTypeUpdateUser, Session: &wire})
}
