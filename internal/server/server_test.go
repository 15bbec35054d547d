package server_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/internal/server"
	"github.com/omochice/support-chat/pkg/protocol"
)

func startServer(t *testing.T, hub *chat.Hub) *server.Server {
	t.Helper()
	srv := server.New("127.0.0.1:0", hub, server.Options{})
	go srv.Start()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_Addr(t *testing.T) {
	srv := startServer(t, chat.NewHub())

	if srv.Addr() == "" {
		t.Error("Addr() returned empty string")
	}
}

func TestServer_TCPClient(t *testing.T) {
	hub := chat.NewHub()
	srv := startServer(t, hub)

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	data, _ := protocol.Binary.Encode(protocol.Login("admin", "Support", true))
	if err := protocol.WriteFrame(conn, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := protocol.ReadFrame(bufio.NewReader(conn), protocol.DefaultMaxFrameSize)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev, err := protocol.Binary.Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != protocol.EventTypeListUsers {
		t.Errorf("expected list_users, got %v", ev.Type)
	}
	if srv.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", srv.ClientCount())
	}
}

func TestServer_WebSocketClient(t *testing.T) {
	hub := chat.NewHub()
	srv := startServer(t, hub)

	conn, _, _, err := ws.Dial(context.Background(), "ws://"+srv.Addr()+"/ws")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	data, _ := protocol.Binary.Encode(protocol.Login("admin", "Support", true))
	if err := wsutil.WriteClientBinary(conn, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, op, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if op != ws.OpBinary {
		t.Errorf("expected binary frame, got %v", op)
	}
	ev, err := protocol.Binary.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != protocol.EventTypeListUsers {
		t.Errorf("expected list_users, got %v", ev.Type)
	}
}

func TestServer_WebSocketJSON(t *testing.T) {
	hub := chat.NewHub()
	srv := startServer(t, hub)

	conn, _, _, err := ws.Dial(context.Background(), "ws://"+srv.Addr()+"/ws?format=json")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := wsutil.WriteClientText(conn, []byte(`{"type":"login","identity":"admin","is_admin":true}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, op, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if op != ws.OpText {
		t.Errorf("expected text frame, got %v", op)
	}
	ev, err := protocol.JSON.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != protocol.EventTypeListUsers {
		t.Errorf("expected list_users, got %v", ev.Type)
	}
}

func TestServer_RejectsUpgrade(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"wrong path", "/chat", http.StatusNotFound},
		{"unknown format", "/ws?format=xml", http.StatusBadRequest},
	}

	srv := startServer(t, chat.NewHub())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := ws.Dial(context.Background(), "ws://"+srv.Addr()+tt.path)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			status, ok := err.(ws.StatusError)
			if !ok {
				t.Fatalf("expected ws.StatusError, got %T: %v", err, err)
			}
			if int(status) != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestServer_Stop(t *testing.T) {
	hub := chat.NewHub()
	srv := server.New("127.0.0.1:0", hub, server.Options{})
	go srv.Start()
	waitFor(t, func() bool { return srv.Addr() != "" })

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	data, _ := protocol.Binary.Encode(protocol.Login("u1", "", false))
	protocol.WriteFrame(conn, data)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	srv.Stop()

	if hub.ClientCount() != 0 {
		t.Errorf("expected clients to be released after stop, got %d", hub.ClientCount())
	}
	if s, ok := hub.Registry().Find("u1"); !ok || s.Online {
		t.Errorf("expected u1 to be offline after stop, got %+v", s)
	}
}

func TestServer_WebSocketFrameLimit(t *testing.T) {
	tests := []struct {
		name  string
		write func(conn net.Conn) error
	}{
		{
			name: "announced length over limit",
			write: func(conn net.Conn) error {
				if err := ws.WriteHeader(conn, ws.Header{
					Fin:    true,
					OpCode: ws.OpBinary,
					Masked: true,
					Mask:   ws.NewMask(),
					Length: 1 << 30,
				}); err != nil {
					return err
				}
				_, err := conn.Write(make([]byte, 1<<20))
				return err
			},
		},
		{
			name: "fragments over limit",
			write: func(conn net.Conn) error {
				payload := []byte("0123456789ab")
				if err := ws.WriteFrame(conn, ws.MaskFrame(ws.NewFrame(ws.OpBinary, false, payload))); err != nil {
					return err
				}
				return ws.WriteFrame(conn, ws.MaskFrame(ws.NewFrame(ws.OpContinuation, true, payload)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := chat.NewHub()
			srv := server.New("127.0.0.1:0", hub, server.Options{MaxFrameSize: 16})
			go srv.Start()
			t.Cleanup(srv.Stop)
			waitFor(t, func() bool { return srv.Addr() != "" })

			conn, _, _, err := ws.Dial(context.Background(), "ws://"+srv.Addr()+"/ws")
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()
			waitFor(t, func() bool { return hub.ClientCount() == 1 })

			// The server may hang up mid-write.
			go tt.write(conn)

			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = wsutil.ReadServerData(conn)
			if err == nil {
				t.Fatal("expected the server to close the connection")
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatalf("connection still open after oversized message: %v", err)
			}
			waitFor(t, func() bool { return hub.ClientCount() == 0 })
		})
	}
}

func TestServer_WebSocketPing(t *testing.T) {
	srv := startServer(t, chat.NewHub())

	conn, _, _, err := ws.Dial(context.Background(), "ws://"+srv.Addr()+"/ws")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := ws.WriteFrame(conn, ws.MaskFrame(ws.NewPingFrame([]byte("hi")))); err != nil {
		t.Fatalf("ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := ws.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Header.OpCode != ws.OpPong || string(frame.Payload) != "hi" {
		t.Errorf("expected pong with %q, got %v %q", "hi", frame.Header.OpCode, frame.Payload)
	}
}
