// Package fakesocket provides an in-memory transport.Socket whose events are
// fired by the test and whose emissions are recorded for assertions.
package fakesocket

import (
	"sync"

	"github.com/rickgao/socksession/internal/transport"
)

// Emission is one recorded Emit or EmitWithAck call.
type Emission struct {
	Event string
	Args  transport.Args
	ack   transport.AckFunc
}

// Ack invokes the acknowledgement registered with the emission, if any.
func (e Emission) Ack(values ...any) {
	if e.ack == nil {
		return
	}
	args, err := transport.EncodeArgs(values...)
	if err != nil {
		panic(err)
	}
	e.ack(args)
}

// Socket is a scriptable transport.Socket.
type Socket struct {
	URL string

	mu        sync.Mutex
	handlers  map[string][]transport.Handler
	emissions []Emission
	connected bool
	started   bool
	closed    bool
	emitErr   error
}

// New creates an unconnected socket.
func New(url string) *Socket {
	return &Socket{URL: url, handlers: make(map[string][]transport.Handler)}
}

func (s *Socket) On(event string, h transport.Handler) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.mu.Unlock()
}

func (s *Socket) Connect() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
}

func (s *Socket) Emit(event string, args ...any) error {
	return s.record(event, nil, args)
}

func (s *Socket) EmitWithAck(event string, ack transport.AckFunc, args ...any) error {
	return s.record(event, ack, args)
}

func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *Socket) record(event string, ack transport.AckFunc, values []any) error {
	args, err := transport.EncodeArgs(values...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.emissions = append(s.emissions, Emission{Event: event, Args: args, ack: ack})
	return s.emitErr
}

// Fire delivers an event to the registered handlers on the calling goroutine.
// "connect" and "disconnect" also flip the wire state.
func (s *Socket) Fire(event string, values ...any) {
	args, err := transport.EncodeArgs(values...)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	switch event {
	case transport.EventConnect:
		s.connected = true
	case transport.EventDisconnect:
		s.connected = false
	}
	handlers := append([]transport.Handler(nil), s.handlers[event]...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(args)
	}
}

// SetEmitError makes subsequent emissions fail with err (they are still recorded).
func (s *Socket) SetEmitError(err error) {
	s.mu.Lock()
	s.emitErr = err
	s.mu.Unlock()
}

// Emissions returns the recorded emissions of the given event.
func (s *Socket) Emissions(event string) []Emission {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Emission
	for _, e := range s.emissions {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Started reports whether Connect was called.
func (s *Socket) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer hands out fake sockets and remembers them.
type Dialer struct {
	mu      sync.Mutex
	sockets []*Socket
}

func (d *Dialer) Dial(url string) transport.Socket {
	s := New(url)
	d.mu.Lock()
	d.sockets = append(d.sockets, s)
	d.mu.Unlock()
	return s
}

// Sockets returns every socket dialled so far.
func (d *Dialer) Sockets() []*Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Socket(nil), d.sockets...)
}

// Last returns the most recently dialled socket, or nil.
func (d *Dialer) Last() *Socket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}
