package ws_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/omochice/support-chat/internal/chat"
	"github.com/omochice/support-chat/internal/transport/ws"
)

var upgrader = websocket.Upgrader{}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*ws.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer c.Close()

		if err := c.WriteMessage(websocket.BinaryMessage, []byte("test message")); err != nil {
			t.Errorf("failed to write: %v", err)
		}
		c.ReadMessage()
	}))
	defer server.Close()

	conn := ws.NewConn(dial(t, server), "", websocket.BinaryMessage)
	defer conn.Close()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "test message" {
		t.Errorf("Read() = %q, want %q", string(data), "test message")
	}
}

func TestConn_ReadNormalCloseIsEOF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.ReadMessage()
	}))
	defer server.Close()

	conn := ws.NewConn(dial(t, server), "", websocket.BinaryMessage)
	defer conn.Close()

	if _, err := conn.Read(context.Background()); err != io.EOF {
		t.Errorf("Read() error = %v, want io.EOF", err)
	}
}

func TestConn_Write(t *testing.T) {
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	}))
	defer server.Close()

	conn := ws.NewConn(dial(t, server), "", websocket.BinaryMessage)
	defer conn.Close()

	if err := conn.Write(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data := <-received
	if string(data) != "hello" {
		t.Errorf("server received %q, want %q", string(data), "hello")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.ReadMessage()
	}))
	defer server.Close()

	raw := dial(t, server)
	defer raw.Close()

	if addr := ws.NewConn(raw, "", websocket.BinaryMessage).RemoteAddr(); addr == "" {
		t.Error("RemoteAddr() returned empty string")
	}
	if addr := ws.NewConn(raw, "10.0.0.1:80", websocket.TextMessage).RemoteAddr(); addr != "10.0.0.1:80" {
		t.Errorf("RemoteAddr() = %q, want 10.0.0.1:80", addr)
	}
}
