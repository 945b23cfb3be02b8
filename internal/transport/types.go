package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrMissingArg      = errors.New("missing argument")
)

// Lifecycle events raised locally by the socket.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Application events exchanged with the session server.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventUnauthorized  = "unauthorized"
	EventLoggedOut     = "logged_out"
	EventLogout        = "logout"
	EventAPI           = "api"
)

// Frame types.
const (
	FrameEvent = "event"
	FrameAck   = "ack"
)

// Frame is a single message on the wire.
type Frame struct {
	Type  string            `json:"type"`            // "event" or "ack"
	Event string            `json:"event,omitempty"` // Event name (event frames only)
	ID    int64             `json:"id,omitempty"`    // Ack correlation ID, 0 = no ack requested
	Args  []json.RawMessage `json:"args,omitempty"`
}

// Args are the JSON-encoded arguments of an event or acknowledgement.
type Args []json.RawMessage

// EncodeArgs JSON-encodes each value. []byte values travel as base64 strings.
func EncodeArgs(values ...any) (Args, error) {
	args := make(Args, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode arg %d: %w", i, err)
		}
		args = append(args, raw)
	}
	return args, nil
}

// Decode unmarshals argument i into v.
func (a Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("arg %d: %w", i, ErrMissingArg)
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("decode arg %d: %w", i, err)
	}
	return nil
}

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	var s string
	err := a.Decode(i, &s)
	return s, err
}

// Bytes returns argument i as raw bytes (encoded as base64 on the wire).
func (a Args) Bytes(i int) ([]byte, error) {
	var b []byte
	err := a.Decode(i, &b)
	return b, err
}

// Handler receives the arguments of an event.
type Handler func(args Args)

// AckFunc receives the arguments of an acknowledgement.
type AckFunc func(args Args)

// Socket is a bidirectional event socket with acknowledgements.
type Socket interface {
	// On registers a handler for an event. Handlers run on the socket's read goroutine.
	On(event string, h Handler)

	// Connect starts connecting in the background. Calling it again is a no-op.
	Connect()

	// Emit sends an event without waiting for acknowledgement.
	Emit(event string, args ...any) error

	// EmitWithAck sends an event and invokes ack once the server acknowledges it.
	EmitWithAck(event string, ack AckFunc, args ...any) error

	// Connected reports whether the wire connection is currently up.
	Connected() bool

	// Close stops the socket permanently.
	Close() error
}

// Dialer creates sockets. Every call returns a new, independent socket.
type Dialer interface {
	Dial(url string) Socket
}

// WSConfig configures the WebSocket implementation.
type WSConfig struct {
	HandshakeTimeout time.Duration // Dial handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	Backoff          BackoffConfig // Wire-level reconnection policy
}

// DefaultWSConfig returns sensible defaults.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
	}
}
