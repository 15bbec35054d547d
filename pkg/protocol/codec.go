package protocol

import (
	"encoding/json"
	"fmt"
)

// Codec turns events into payload bytes and back.
type Codec interface {
	Encode(ev Event) ([]byte, error)
	Decode(data []byte) (Event, error)
	Name() string
}

var (
	// Binary encodes events in the protobuf wire format. It is the default
	// codec for TCP and binary WebSocket frames.
	Binary Codec = binaryCodec{}

	// JSON encodes events as JSON objects for browser clients using text frames.
	JSON Codec = jsonCodec{}
)

// CodecByName returns the codec registered under name. Empty selects Binary.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", Binary.Name():
		return Binary, nil
	case JSON.Name():
		return JSON, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type binaryCodec struct{}

func (binaryCodec) Name() string { return "binary" }

func (binaryCodec) Encode(ev Event) ([]byte, error) {
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("failed to encode event: %w: %d", ErrUnknownEventType, int(ev.Type))
	}
	return appendEvent(nil, ev), nil
}

func (binaryCodec) Decode(data []byte) (Event, error) {
	ev, err := consumeEvent(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if !ev.Type.Valid() {
		return Event{}, fmt.Errorf("failed to decode event: %w: %d", ErrUnknownEventType, int(ev.Type))
	}
	return ev, nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if !ev.Type.Valid() {
		return Event{}, fmt.Errorf("failed to decode event: %w", ErrUnknownEventType)
	}
	return ev, nil
}
