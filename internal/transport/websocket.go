package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer creates gorilla/websocket backed sockets.
type WSDialer struct {
	cfg    WSConfig
	header http.Header
	logger *slog.Logger
}

// NewWSDialer creates a dialer. header is sent with every handshake and may be nil.
func NewWSDialer(cfg WSConfig, header http.Header, logger *slog.Logger) *WSDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDialer{cfg: cfg, header: header, logger: logger}
}

// Dial returns a fresh, unconnected socket for url.
func (d *WSDialer) Dial(url string) Socket {
	return &wsSocket{
		url:      url,
		cfg:      d.cfg,
		header:   d.header.Clone(),
		logger:   d.logger.With("url", url),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		handlers: make(map[string][]Handler),
		pending:  make(map[int64]AckFunc),
		done:     make(chan struct{}),
	}
}

// wsSocket implements Socket over a WebSocket connection that is re-dialled
// whenever it drops.
type wsSocket struct {
	url    string
	cfg    WSConfig
	header http.Header
	logger *slog.Logger
	rng    *rand.Rand

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	conn       *websocket.Conn
	connected  bool
	started    bool
	closed     bool
	lastPingAt time.Time

	// Ack correlation
	pendingMu sync.Mutex
	pending   map[int64]AckFunc
	ackID     int64 // Atomic counter

	done chan struct{}
}

// On registers a handler for an event.
func (s *wsSocket) On(event string, h Handler) {
	s.handlersMu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.handlersMu.Unlock()
}

// Connect starts the connection loop.
func (s *wsSocket) Connect() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Emit sends an event without an acknowledgement.
func (s *wsSocket) Emit(event string, args ...any) error {
	return s.emit(event, nil, args)
}

// EmitWithAck sends an event and registers ack for the server's reply.
func (s *wsSocket) EmitWithAck(event string, ack AckFunc, args ...any) error {
	return s.emit(event, ack, args)
}

// Connected returns the current wire state.
func (s *wsSocket) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close stops reconnection and closes the current connection.
func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	// Signal goroutines to stop
	close(s.done)
	s.dropPending()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

func (s *wsSocket) emit(event string, ack AckFunc, values []any) error {
	args, err := EncodeArgs(values...)
	if err != nil {
		return err
	}

	frame := Frame{Type: FrameEvent, Event: event, Args: args}
	if ack != nil {
		frame.ID = atomic.AddInt64(&s.ackID, 1)
		s.pendingMu.Lock()
		s.pending[frame.ID] = ack
		s.pendingMu.Unlock()
	}

	data, err := json.Marshal(frame)
	if err != nil {
		s.forgetAck(frame.ID)
		return fmt.Errorf("marshal frame: %w", err)
	}

	s.mu.RLock()
	conn, connected, closed := s.conn, s.connected, s.closed
	s.mu.RUnlock()

	if closed {
		s.forgetAck(frame.ID)
		return ErrAlreadyClosed
	}
	if !connected || conn == nil {
		s.forgetAck(frame.ID)
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.forgetAck(frame.ID)
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// run dials, reads until the connection drops, and dials again until Close.
func (s *wsSocket) run() {
	attempt := 0

	for {
		if s.isClosed() {
			return
		}

		conn, err := s.dial()
		if err != nil {
			attempt++
			s.logger.Debug("websocket dial failed", "attempt", attempt, "error", err)
			s.dispatch(EventConnectError, mustArgs(err.Error()))
			if !s.sleep(NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)) {
				return
			}
			continue
		}
		attempt = 0

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connected = true
		s.lastPingAt = time.Now()
		s.mu.Unlock()

		s.logger.Debug("websocket connected")
		s.dispatch(EventConnect, nil)

		stop := make(chan struct{})
		go s.heartbeatLoop(conn, stop)

		reason := s.readLoop(conn)
		close(stop)

		s.mu.Lock()
		s.connected = false
		s.conn = nil
		closed := s.closed
		s.mu.Unlock()

		conn.Close()
		s.dropPending()

		if closed {
			return
		}

		s.logger.Info("websocket disconnected", "reason", reason)
		s.dispatch(EventDisconnect, mustArgs(reason))

		if !s.sleep(NextBackoffDelay(s.cfg.Backoff, 1, s.rng)) {
			return
		}
	}
}

func (s *wsSocket) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(s.url, s.header)
	if err != nil {
		return nil, err
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	return conn, nil
}

// readLoop routes frames until the connection fails and returns the reason.
func (s *wsSocket) readLoop(conn *websocket.Conn) string {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err.Error()
		}
		s.touch()

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch frame.Type {
		case FrameAck:
			s.resolveAck(frame.ID, frame.Args)
		case FrameEvent:
			s.dispatch(frame.Event, frame.Args)
		default:
			s.logger.Debug("ignoring frame", "type", frame.Type)
		}
	}
}

// heartbeatLoop pings the server and closes stale connections.
func (s *wsSocket) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	if s.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}

			s.mu.RLock()
			lastPing := s.lastPingAt
			s.mu.RUnlock()

			if s.cfg.PingTimeout > 0 && time.Since(lastPing) > s.cfg.PingTimeout {
				s.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", s.cfg.PingTimeout,
				)
				conn.Close()
				return
			}
		}
	}
}

func (s *wsSocket) dispatch(event string, args Args) {
	s.handlersMu.RLock()
	handlers := append([]Handler(nil), s.handlers[event]...)
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		h(args)
	}
}

func (s *wsSocket) resolveAck(id int64, args Args) {
	s.pendingMu.Lock()
	ack, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if ok {
		ack(args)
	}
}

func (s *wsSocket) forgetAck(id int64) {
	if id == 0 {
		return
	}
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// dropPending abandons acks of emissions made on a lost connection.
func (s *wsSocket) dropPending() {
	s.pendingMu.Lock()
	if n := len(s.pending); n > 0 {
		s.logger.Debug("dropping pending acks", "count", n)
	}
	s.pending = make(map[int64]AckFunc)
	s.pendingMu.Unlock()
}

func (s *wsSocket) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

func (s *wsSocket) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// sleep waits for d and reports false if the socket was closed meanwhile.
func (s *wsSocket) sleep(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

func mustArgs(values ...any) Args {
	args, err := EncodeArgs(values...)
	if err != nil {
		return nil
	}
	return args
}
