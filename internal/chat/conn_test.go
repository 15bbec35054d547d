package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/pkg/protocol"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	writtenMu  sync.Mutex
	written    [][]byte
	closed     bool
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

func (m *mockConn) IsClosed() bool {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.closed
}

// WrittenEvents decodes everything written so far with the binary codec.
func (m *mockConn) WrittenEvents() []protocol.Event {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	events := make([]protocol.Event, 0, len(m.written))
	for _, data := range m.written {
		ev, err := protocol.Binary.Decode(data)
		if err == nil {
			events = append(events, ev)
		}
	}
	return events
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)

// recorder is a chat.Handle that keeps every event sent to it.
type recorder struct {
	id     string
	mu     sync.Mutex
	events []protocol.Event
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) HandleID() string {
	return r.id
}

func (r *recorder) Send(ev protocol.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) Events() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) OfType(t protocol.EventType) []protocol.Event {
	var out []protocol.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

var _ chat.Handle = (*recorder)(nil)
