package chat

import (
	"fmt"

	"github.com/omochice/support-chat/pkg/protocol"
)

// Router delivers chat messages between the admin and users and records
// them in the user's history.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Route forwards msg to its destination connection. Admin messages go to the
// online session named by msg.Target; user messages go to the online admin.
// Either way the message is appended once to the user's history.
//
// ErrNoRoute is returned when the destination is offline or unknown. The
// message is dropped; nothing is queued or retried.
func (r *Router) Route(msg Message) error {
	r.registry.mu.Lock()
	defer r.registry.mu.Unlock()

	event := protocol.Message(msg.toWire())

	if msg.FromAdmin {
		target, ok := r.registry.sessions[msg.Target]
		if !ok || !target.online() {
			return fmt.Errorf("%w: user %q is not online", ErrNoRoute, msg.Target)
		}
		target.handle.Send(event)
		target.history = append(target.history, msg)
		return nil
	}

	admin := r.registry.adminLocked()
	if admin == nil {
		return fmt.Errorf("%w: no admin online", ErrNoRoute)
	}
	admin.handle.Send(event)
	r.registry.appendLocked(msg.Target, msg)
	return nil
}
