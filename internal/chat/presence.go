package chat

import "log"

// Tracker applies login and disconnect events to the registry and tells the
// admin about the resulting presence changes.
//
// Per identity the states are Unknown, Offline and Online. A disconnect whose
// handle is no longer the session's live handle is stale and changes nothing.
type Tracker struct {
	registry *Registry
	notifier *Notifier
}

// NewTracker creates a Tracker over registry that notifies through notifier.
func NewTracker(registry *Registry, notifier *Notifier) *Tracker {
	return &Tracker{registry: registry, notifier: notifier}
}

// Login brings identity online on handle h. An admin receives the full
// roster; a user's new state is pushed to the admin when one is online.
func (t *Tracker) Login(h Handle, identity, name string, isAdmin bool) (Session, error) {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()

	s, displaced, err := t.registry.upsertLocked(identity, name, isAdmin, h)
	if err != nil {
		log.Printf("chat: rejected login for %q: %v", identity, err)
		return Session{}, err
	}
	if displaced != nil {
		log.Printf("chat: %q offline, connection %s logged in as %q", displaced.identity, h.HandleID(), identity)
		// An admin login gets the roster, which already shows it offline.
		if !isAdmin {
			t.offlineLocked(displaced)
		}
	}

	snapshot := s.snapshot()
	log.Printf("chat: %q online (admin=%t)", identity, isAdmin)
	if snapshot.IsAdmin {
		t.notifier.NotifyRoster(h, t.registry.sessionsLocked())
		return snapshot, nil
	}
	t.notifier.notifyUpdateLocked(snapshot)
	return snapshot, nil
}

// Disconnect takes the session bound to h offline. It reports false for a
// stale handle, in which case nothing is changed or sent.
func (t *Tracker) Disconnect(h Handle) (Session, bool) {
	t.registry.mu.Lock()
	defer t.registry.mu.Unlock()

	s, ok := t.registry.markOfflineLocked(h)
	if !ok {
		return Session{}, false
	}
	log.Printf("chat: %q offline", s.identity)
	t.offlineLocked(s)
	return s.snapshot(), true
}

func (t *Tracker) offlineLocked(s *session) {
	if s.isAdmin {
		return
	}
	t.notifier.notifyUpdateLocked(s.snapshot())
}
