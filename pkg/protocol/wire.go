package protocol

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the protobuf wire layout. They must stay stable across
// releases since clients encode against them.
const (
	eventTypeField         protowire.Number = 1
	eventIdentityField     protowire.Number = 2
	eventNameField         protowire.Number = 3
	eventIsAdminField      protowire.Number = 4
	eventMessageField      protowire.Number = 5
	eventSessionField      protowire.Number = 6
	eventSessionsField     protowire.Number = 7
	eventErrorCodeField    protowire.Number = 8
	eventErrorMessageField protowire.Number = 9

	messageIDField        protowire.Number = 1
	messageFromAdminField protowire.Number = 2
	messageTargetField    protowire.Number = 3
	messageBodyField      protowire.Number = 4
	messageSentAtField    protowire.Number = 5
	messageNameField      protowire.Number = 6

	sessionIdentityField protowire.Number = 1
	sessionNameField     protowire.Number = 2
	sessionIsAdminField  protowire.Number = 3
	sessionOnlineField   protowire.Number = 4
	sessionHistoryField  protowire.Number = 5
)

func appendEvent(b []byte, ev Event) []byte {
	b = protowire.AppendTag(b, eventTypeField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Type))
	b = appendString(b, eventIdentityField, ev.Identity)
	b = appendString(b, eventNameField, ev.Name)
	b = appendBool(b, eventIsAdminField, ev.IsAdmin)
	if ev.Message != nil {
		b = appendEmbedded(b, eventMessageField, appendChatMessage(nil, *ev.Message))
	}
	if ev.Session != nil {
		b = appendEmbedded(b, eventSessionField, appendSession(nil, *ev.Session))
	}
	for _, s := range ev.Sessions {
		b = appendEmbedded(b, eventSessionsField, appendSession(nil, s))
	}
	b = appendString(b, eventErrorCodeField, ev.ErrorCode)
	b = appendString(b, eventErrorMessageField, ev.ErrorMessage)
	return b
}

func appendChatMessage(b []byte, m ChatMessage) []byte {
	b = appendString(b, messageIDField, m.ID)
	b = appendBool(b, messageFromAdminField, m.FromAdmin)
	b = appendString(b, messageTargetField, m.Target)
	b = appendString(b, messageBodyField, m.Body)
	if !m.SentAt.IsZero() {
		b = protowire.AppendTag(b, messageSentAtField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.SentAt.UnixMilli()))
	}
	b = appendString(b, messageNameField, m.Name)
	return b
}

func appendSession(b []byte, s Session) []byte {
	b = appendString(b, sessionIdentityField, s.Identity)
	b = appendString(b, sessionNameField, s.Name)
	b = appendBool(b, sessionIsAdminField, s.IsAdmin)
	b = appendBool(b, sessionOnlineField, s.Online)
	for _, m := range s.History {
		b = appendEmbedded(b, sessionHistoryField, appendChatMessage(nil, m))
	}
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendEmbedded(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// field is one decoded key/value pair. Only varint and length-delimited
// values are kept; other wire types are skipped by readFields.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func readFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			fields = append(fields, field{num: num, typ: typ, varint: v})
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			fields = append(fields, field{num: num, typ: typ, bytes: v})
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return fields, nil
}

func consumeEvent(b []byte) (Event, error) {
	fields, err := readFields(b)
	if err != nil {
		return Event{}, err
	}

	var ev Event
	for _, f := range fields {
		switch {
		case f.num == eventTypeField && f.typ == protowire.VarintType:
			ev.Type = EventType(f.varint)
		case f.num == eventIdentityField && f.typ == protowire.BytesType:
			ev.Identity = string(f.bytes)
		case f.num == eventNameField && f.typ == protowire.BytesType:
			ev.Name = string(f.bytes)
		case f.num == eventIsAdminField && f.typ == protowire.VarintType:
			ev.IsAdmin = protowire.DecodeBool(f.varint)
		case f.num == eventMessageField && f.typ == protowire.BytesType:
			m, err := consumeChatMessage(f.bytes)
			if err != nil {
				return Event{}, fmt.Errorf("message: %w", err)
			}
			ev.Message = &m
		case f.num == eventSessionField && f.typ == protowire.BytesType:
			s, err := consumeSession(f.bytes)
			if err != nil {
				return Event{}, fmt.Errorf("session: %w", err)
			}
			ev.Session = &s
		case f.num == eventSessionsField && f.typ == protowire.BytesType:
			s, err := consumeSession(f.bytes)
			if err != nil {
				return Event{}, fmt.Errorf("sessions: %w", err)
			}
			ev.Sessions = append(ev.Sessions, s)
		case f.num == eventErrorCodeField && f.typ == protowire.BytesType:
			ev.ErrorCode = string(f.bytes)
		case f.num == eventErrorMessageField && f.typ == protowire.BytesType:
			ev.ErrorMessage = string(f.bytes)
		}
	}
	return ev, nil
}

func consumeChatMessage(b []byte) (ChatMessage, error) {
	fields, err := readFields(b)
	if err != nil {
		return ChatMessage{}, err
	}

	var m ChatMessage
	for _, f := range fields {
		switch {
		case f.num == messageIDField && f.typ == protowire.BytesType:
			m.ID = string(f.bytes)
		case f.num == messageFromAdminField && f.typ == protowire.VarintType:
			m.FromAdmin = protowire.DecodeBool(f.varint)
		case f.num == messageTargetField && f.typ == protowire.BytesType:
			m.Target = string(f.bytes)
		case f.num == messageBodyField && f.typ == protowire.BytesType:
			m.Body = string(f.bytes)
		case f.num == messageSentAtField && f.typ == protowire.VarintType:
			m.SentAt = time.UnixMilli(int64(f.varint)).UTC()
		case f.num == messageNameField && f.typ == protowire.BytesType:
			m.Name = string(f.bytes)
		}
	}
	return m, nil
}

func consumeSession(b []byte) (Session, error) {
	fields, err := readFields(b)
	if err != nil {
		return Session{}, err
	}

	var s Session
	for _, f := range fields {
		switch {
		case f.num == sessionIdentityField && f.typ == protowire.BytesType:
			s.Identity = string(f.bytes)
		case f.num == sessionNameField && f.typ == protowire.BytesType:
			s.Name = string(f.bytes)
		case f.num == sessionIsAdminField && f.typ == protowire.VarintType:
			s.IsAdmin = protowire.DecodeBool(f.varint)
		case f.num == sessionOnlineField && f.typ == protowire.VarintType:
			s.Online = protowire.DecodeBool(f.varint)
		case f.num == sessionHistoryField && f.typ == protowire.BytesType:
			m, err := consumeChatMessage(f.bytes)
			if err != nil {
				return Session{}, fmt.Errorf("history: %w", err)
			}
			s.History = append(s.History, m)
		}
	}
	return s, nil
}
