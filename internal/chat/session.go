package chat

import (
	"time"

	"github.com/omochice/support-chat/pkg/protocol"
)

// Message is one chat message between the admin and a user.
// Target is always the user side of the conversation.
type Message struct {
	ID        string
	FromAdmin bool
	Target    string
	Body      string
	Name      string
	SentAt    time.Time
}

// Session is a point-in-time copy of a registry entry.
type Session struct {
	Identity string
	Name     string
	IsAdmin  bool
	Online   bool
	History  []Message
}

func (m Message) toWire() protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:        m.ID,
		FromAdmin: m.FromAdmin,
		Target:    m.Target,
		Body:      m.Body,
		Name:      m.Name,
		SentAt:    m.SentAt,
	}
}

func (s Session) toWire() protocol.Session {
	var history []protocol.ChatMessage
	if len(s.History) > 0 {
		history = make([]protocol.ChatMessage, len(s.History))
		for i, m := range s.History {
			history[i] = m.toWire()
		}
	}
	return protocol.Session{
		Identity: s.Identity,
		Name:     s.Name,
		IsAdmin:  s.IsAdmin,
		Online:   s.Online,
		History:  history,
	}
}

func sessionsToWire(sessions []Session) []protocol.Session {
	out := make([]protocol.Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.toWire()
	}
	return out
}
