package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig() WSConfig {
	cfg := DefaultWSConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2}
	return cfg
}

// waitFor receives from ch or fails after a second.
func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
	var zero T
	return zero
}

func TestSocket_ConnectEvent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sock := NewWSDialer(testConfig(), nil, nil).Dial(wsURL(server))
	defer sock.Close()

	connected := make(chan struct{}, 1)
	sock.On(EventConnect, func(Args) { connected <- struct{}{} })
	sock.Connect()

	waitFor(t, connected, "connect event")

	if !sock.Connected() {
		t.Error("expected Connected to return true")
	}
}

func TestSocket_EmitWithAck(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				return
			}
			if f.ID == 0 {
				continue
			}
			reply, _ := json.Marshal(Frame{Type: FrameAck, ID: f.ID, Args: f.Args})
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sock := NewWSDialer(testConfig(), nil, nil).Dial(wsURL(server))
	defer sock.Close()

	connected := make(chan struct{}, 1)
	sock.On(EventConnect, func(Args) { connected <- struct{}{} })
	sock.Connect()
	waitFor(t, connected, "connect event")

	acked := make(chan Args, 1)
	err := sock.EmitWithAck(EventAPI, func(args Args) { acked <- args }, "profile.get", []byte("payload"))
	if err != nil {
		t.Fatalf("EmitWithAck failed: %v", err)
	}

	args := waitFor(t, acked, "ack")

	op, err := args.String(0)
	if err != nil || op != "profile.get" {
		t.Errorf("arg 0 = %q (%v), want profile.get", op, err)
	}
	payload, err := args.Bytes(1)
	if err != nil || string(payload) != "payload" {
		t.Errorf("arg 1 = %q (%v), want payload", payload, err)
	}
}

func TestSocket_ServerEvent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		args, _ := EncodeArgs("new-token")
		data, _ := json.Marshal(Frame{Type: FrameEvent, Event: EventAuthenticated, Args: args})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	sock := NewWSDialer(testConfig(), nil, nil).Dial(wsURL(server))
	defer sock.Close()

	tokens := make(chan string, 1)
	sock.On(EventAuthenticated, func(args Args) {
		tok, _ := args.String(0)
		tokens <- tok
	})
	sock.Connect()

	if tok := waitFor(t, tokens, "authenticated event"); tok != "new-token" {
		t.Errorf("token = %q, want new-token", tok)
	}
}

func TestSocket_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	conns := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			// Drop the first connection immediately
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	sock := NewWSDialer(testConfig(), nil, nil).Dial(wsURL(server))
	defer sock.Close()

	events := make(chan string, 10)
	sock.On(EventConnect, func(Args) { events <- EventConnect })
	sock.On(EventDisconnect, func(Args) { events <- EventDisconnect })
	sock.Connect()

	want := []string{EventConnect, EventDisconnect, EventConnect}
	for i, w := range want {
		if got := waitFor(t, events, w); got != w {
			t.Fatalf("event %d = %s, want %s", i, got, w)
		}
	}
}

func TestSocket_ConnectError(t *testing.T) {
	sock := NewWSDialer(testConfig(), nil, nil).Dial("ws://127.0.0.1:1")
	defer sock.Close()

	errs := make(chan string, 10)
	sock.On(EventConnectError, func(args Args) {
		msg, _ := args.String(0)
		errs <- msg
	})
	sock.Connect()

	if msg := waitFor(t, errs, "connect_error"); msg == "" {
		t.Error("expected connect_error to carry a reason")
	}
}

func TestSocket_EmitNotConnected(t *testing.T) {
	sock := NewWSDialer(testConfig(), nil, nil).Dial("ws://localhost:12345")

	if err := sock.Emit(EventLogout, "tok"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSocket_DoubleClose(t *testing.T) {
	sock := NewWSDialer(testConfig(), nil, nil).Dial("ws://localhost:12345")

	if err := sock.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := sock.Emit(EventLogout, "tok"); err != ErrAlreadyClosed {
		t.Errorf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestArgs_Decode(t *testing.T) {
	args, err := EncodeArgs("op", 42, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("EncodeArgs failed: %v", err)
	}

	var n int
	if err := args.Decode(1, &n); err != nil || n != 42 {
		t.Errorf("arg 1 = %d (%v), want 42", n, err)
	}
	b, err := args.Bytes(2)
	if err != nil || len(b) != 3 {
		t.Errorf("arg 2 = %v (%v), want 3 bytes", b, err)
	}
	if _, err := args.String(5); err == nil {
		t.Error("expected error for missing arg")
	}
}

func TestNextBackoffDelay(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := NextBackoffDelay(cfg, tt.attempt, nil); got != tt.want {
			t.Errorf("NextBackoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
