package chat

import (
	"fmt"
	"sync"
)

type session struct {
	identity string
	name     string
	isAdmin  bool
	handle   Handle
	history  []Message
}

func (s *session) online() bool {
	return s.handle != nil
}

func (s *session) snapshot() Session {
	history := make([]Message, len(s.history))
	copy(history, s.history)
	return Session{
		Identity: s.identity,
		Name:     s.name,
		IsAdmin:  s.isAdmin,
		Online:   s.online(),
		History:  history,
	}
}

// Registry maps party identities to their sessions. Sessions are created on
// first login and never removed while the process runs.
//
// Every method is atomic. The tracker, router and notifier in this package
// run their lookup-then-send sequences under the same lock through the
// *Locked helpers, so a delivery can never target a handle that MarkOffline
// has already cleared.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string
	byHandle map[Handle]string
	// adminID is the identity of the online admin, "" when none.
	adminID string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		byHandle: make(map[Handle]string),
	}
}

// UpsertLogin installs h as the live handle of identity, creating the session
// on first login. The admin flag of an existing session cannot change, and a
// second admin identity cannot come online while another admin is online.
func (r *Registry) UpsertLogin(identity, name string, isAdmin bool, h Handle) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, _, err := r.upsertLocked(identity, name, isAdmin, h)
	if err != nil {
		return Session{}, err
	}
	return s.snapshot(), nil
}

// MarkOffline clears the handle of the session currently bound to h.
// It reports false when h is not the live handle of any session.
func (r *Registry) MarkOffline(h Handle) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.markOfflineLocked(h)
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

// Find returns the session registered for identity.
func (r *Registry) Find(identity string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[identity]
	if !ok {
		return Session{}, false
	}
	return s.snapshot(), true
}

// FindAdmin returns the online admin session, if any.
func (r *Registry) FindAdmin() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin := r.adminLocked()
	if admin == nil {
		return Session{}, false
	}
	return admin.snapshot(), true
}

// AppendHistory appends msg to the history of identity.
func (r *Registry) AppendHistory(identity string, msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendLocked(identity, msg)
}

// Sessions returns every session in first-login order.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessionsLocked()
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// upsertLocked returns the logged-in session and, when h was still bound to
// another identity, that other session after it was taken offline.
func (r *Registry) upsertLocked(identity, name string, isAdmin bool, h Handle) (*session, *session, error) {
	if identity == "" {
		return nil, nil, ErrEmptyIdentity
	}

	s, exists := r.sessions[identity]
	if exists && s.isAdmin != isAdmin {
		return nil, nil, fmt.Errorf("%w: %q is registered with admin=%t", ErrRoleMismatch, identity, s.isAdmin)
	}
	if isAdmin && r.adminID != "" && r.adminID != identity {
		return nil, nil, fmt.Errorf("%w: %q", ErrAdminConflict, r.adminID)
	}

	var displaced *session
	if bound, ok := r.byHandle[h]; ok && bound != identity {
		displaced = r.sessions[bound]
		r.offlineLocked(displaced)
	}

	if !exists {
		s = &session{identity: identity, isAdmin: isAdmin}
		r.sessions[identity] = s
		r.order = append(r.order, identity)
	}
	if s.handle != nil && s.handle != h {
		delete(r.byHandle, s.handle)
	}
	s.handle = h
	if name != "" {
		s.name = name
	}
	r.byHandle[h] = identity
	if isAdmin {
		r.adminID = identity
	}
	return s, displaced, nil
}

func (r *Registry) markOfflineLocked(h Handle) (*session, bool) {
	identity, ok := r.byHandle[h]
	if !ok {
		return nil, false
	}
	s := r.sessions[identity]
	r.offlineLocked(s)
	return s, true
}

func (r *Registry) offlineLocked(s *session) {
	delete(r.byHandle, s.handle)
	s.handle = nil
	if r.adminID == s.identity {
		r.adminID = ""
	}
}

func (r *Registry) adminLocked() *session {
	if r.adminID == "" {
		return nil
	}
	return r.sessions[r.adminID]
}

func (r *Registry) appendLocked(identity string, msg Message) bool {
	s, ok := r.sessions[identity]
	if !ok {
		return false
	}
	s.history = append(s.history, msg)
	return true
}

func (r *Registry) sessionsLocked() []Session {
	out := make([]Session, 0, len(r.order))
	for _, identity := range r.order {
		out = append(out, r.sessions[identity].snapshot())
	}
	return out
}
