// Package protocol defines the events exchanged between connected parties and
// the relay, together with the codecs and framing used to carry them.
package protocol

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType is returned when an event carries a type the relay does not know.
var ErrUnknownEventType = errors.New("unknown event type")

// EventType represents the type of event
type EventType int

const (
	EventTypeUnknown EventType = iota
	EventTypeLogin
	EventTypeSelectUser
	EventTypeMessage
	EventTypeUpdateUser
	EventTypeListUsers
	EventTypeUndeliverable
	EventTypeError
)

var eventTypeNames = map[EventType]string{
	EventTypeLogin:         "login",
	EventTypeSelectUser:    "select_user",
	EventTypeMessage:       "message",
	EventTypeUpdateUser:    "update_user",
	EventTypeListUsers:     "list_users",
	EventTypeUndeliverable: "undeliverable",
	EventTypeError:         "error",
}

// String returns the string representation of EventType
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a known, non-zero event type.
func (t EventType) Valid() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// ParseEventType maps a wire name back to its EventType.
func ParseEventType(name string) (EventType, error) {
	for t, n := range eventTypeNames {
		if n == name {
			return t, nil
		}
	}
	return EventTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownEventType, name)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEventType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ChatMessage is a chat message as it travels on the wire.
// Target is always the non-admin side of the conversation.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	FromAdmin bool      `json:"from_admin"`
	Target    string    `json:"target"`
	Body      string    `json:"body"`
	Name      string    `json:"name,omitempty"`
	SentAt    time.Time `json:"sent_at,omitzero"`
}

// Session is the wire form of a registry session.
type Session struct {
	Identity string        `json:"identity"`
	Name     string        `json:"name,omitempty"`
	IsAdmin  bool          `json:"is_admin"`
	Online   bool          `json:"online"`
	History  []ChatMessage `json:"history,omitempty"`
}

// Event is the single envelope used in both directions. Which fields are
// meaningful depends on Type:
//
//	login          Identity, Name, IsAdmin
//	select_user    Identity (inbound), Session (outbound)
//	message        Message
//	update_user    Session
//	list_users     Sessions
//	undeliverable  Message
//	error          ErrorCode, ErrorMessage
type Event struct {
	Type         EventType    `json:"type"`
	Identity     string       `json:"identity,omitempty"`
	Name         string       `json:"name,omitempty"`
	IsAdmin      bool         `json:"is_admin,omitempty"`
	Message      *ChatMessage `json:"message,omitempty"`
	Session      *Session     `json:"session,omitempty"`
	Sessions     []Session    `json:"sessions,omitempty"`
	ErrorCode    string       `json:"error_code,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// Login builds a login event.
func Login(identity, name string, isAdmin bool) Event {
	return Event{Type: EventTypeLogin, Identity: identity, Name: name, IsAdmin: isAdmin}
}

// SelectUser builds an inbound select_user request.
func SelectUser(identity string) Event {
	return Event{Type: EventTypeSelectUser, Identity: identity}
}

// Message builds a message event.
func Message(msg ChatMessage) Event {
	return Event{Type: EventTypeMessage, Message: &msg}
}

// Error builds an error event.
func Error(code, message string) Event {
	return Event{Type: EventTypeError, ErrorCode: code, ErrorMessage: message}
}
