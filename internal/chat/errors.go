package chat

import (
	"errors"

	"github.com/omochice/support-chat/pkg/protocol"
)

var (
	ErrEmptyIdentity  = errors.New("identity is required")
	ErrRoleMismatch   = errors.New("role does not match existing session")
	ErrAdminConflict  = errors.New("another admin is online")
	ErrNoRoute        = errors.New("no route for message")
	ErrUnknownSession = errors.New("unknown session")
	ErrNotAdmin       = errors.New("requester is not the current admin")
	ErrNotLoggedIn    = errors.New("connection has not logged in")
)

// Codes carried by error events sent back to a party.
const (
	CodeInvalidEvent  = "invalid_event"
	CodeInvalidLogin  = "invalid_login"
	CodeRoleMismatch  = "role_mismatch"
	CodeAdminConflict = "admin_conflict"
	CodeNotAdmin      = "not_admin"
	CodeNotLoggedIn   = "not_logged_in"
	CodeUnsupported   = "unsupported_event"
)

func errorEvent(err error) protocol.Event {
	code := CodeInvalidEvent
	switch {
	case errors.Is(err, ErrEmptyIdentity):
		code = CodeInvalidLogin
	case errors.Is(err, ErrRoleMismatch):
		code = CodeRoleMismatch
	case errors.Is(err, ErrAdminConflict):
		code = CodeAdminConflict
	case errors.Is(err, ErrNotAdmin):
		code = CodeNotAdmin
	case errors.Is(err, ErrNotLoggedIn):
		code = CodeNotLoggedIn
	}
	return protocol.Error(code, err.Error())
}
