package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rickgao/socksession/internal/clock"
	"github.com/rickgao/socksession/internal/codec"
	"github.com/rickgao/socksession/internal/metrics"
	"github.com/rickgao/socksession/internal/transport"
)

// Connector supplies authenticated sockets and the reconnection signal.
// *session.Manager satisfies it.
type Connector interface {
	Connect(ctx context.Context) (transport.Socket, error)
	OnReconnect(fn func()) func()
}

// Config configures a Gateway.
type Config struct {
	TimeoutSeconds int         // Default per-call deadline (default 120)
	Attempts       int         // Default emissions per call (default 3)
	Codec          codec.Codec // default codec.JSON
	Clock          clock.Clock // default real time
	Metrics        *metrics.Metrics
}

// Gateway issues calls over the connector's socket.
type Gateway struct {
	conn     Connector
	codec    codec.Codec
	clk      clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	defaults callOptions
}

// New creates a Gateway.
func New(conn Connector, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	return &Gateway{
		conn:    conn,
		codec:   cfg.Codec,
		clk:     cfg.Clock,
		metrics: cfg.Metrics,
		logger:  logger.With("component", "gateway"),
		defaults: callOptions{
			timeoutSeconds: cfg.TimeoutSeconds,
			attempts:       cfg.Attempts,
		},
	}
}

// Fetch is Call with KindFetch.
func (g *Gateway) Fetch(ctx context.Context, operation string, data any, label string, opts ...CallOption) (any, error) {
	return g.Call(ctx, KindFetch, operation, data, label, opts...)
}

// Post is Call with KindPost.
func (g *Gateway) Post(ctx context.Context, operation string, data any, label string, opts ...CallOption) (any, error) {
	return g.Call(ctx, KindPost, operation, data, label, opts...)
}

// Notify is Call with KindNotify.
func (g *Gateway) Notify(ctx context.Context, operation string, data any, label string, opts ...CallOption) (any, error) {
	return g.Call(ctx, KindNotify, operation, data, label, opts...)
}

// Call emits operation with data and returns the data of the server's
// response envelope. Failures are *Error values except for serialization
// errors and context cancellation.
func (g *Gateway) Call(ctx context.Context, kind Kind, operation string, data any, label string, opts ...CallOption) (any, error) {
	o := g.defaults
	for _, opt := range opts {
		opt(&o)
	}
	start := g.clk.Now()

	payload, err := g.codec.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", operation, err)
	}

	sock, err := g.conn.Connect(ctx)
	if err != nil {
		g.metrics.Call(string(kind), metrics.OutcomeConnectionError, g.clk.Now().Sub(start))
		return nil, &Error{Code: CodeConnectionErr, Description: err.Error(), Err: err}
	}

	p := &pending{
		id:        uuid.NewString(),
		kind:      kind,
		operation: operation,
		label:     label,
		payload:   payload,
		opts:      o,
		sock:      sock,
		g:         g,
		result:    make(chan result, 1),
	}
	p.logger = g.logger.With("request_id", p.id, "kind", string(kind), "operation", operation, "label", label)

	unsubscribe := g.conn.OnReconnect(p.reconnected)
	defer unsubscribe()

	p.mu.Lock()
	attempt := p.armLocked()
	p.mu.Unlock()
	p.send(attempt)

	select {
	case res := <-p.result:
		g.metrics.Call(string(kind), outcomeOf(res.err), g.clk.Now().Sub(start))
		return res.data, res.err
	case <-ctx.Done():
		p.abandon()
		g.metrics.Call(string(kind), metrics.OutcomeCanceled, g.clk.Now().Sub(start))
		return nil, ctx.Err()
	}
}

func outcomeOf(err error) string {
	var gerr *Error
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &gerr) && gerr.Code == CodeNoServerResponse:
		if errors.Is(gerr.Err, errAttemptsExhausted) {
			return metrics.OutcomeExhausted
		}
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeServerError
	}
}

type result struct {
	data any
	err  error
}

// pending is one in-flight call.
type pending struct {
	id        string
	kind      Kind
	operation string
	label     string
	payload   []byte
	opts      callOptions
	sock      transport.Socket
	g         *Gateway
	logger    *slog.Logger
	result    chan result

	mu       sync.Mutex
	attempts int
	timer    clock.Timer
	done     bool
}

// armLocked counts a new attempt and restarts the deadline.
func (p *pending) armLocked() int {
	p.attempts++
	attempt := p.attempts
	if p.timer != nil {
		p.timer.Stop()
	}
	timeout := time.Duration(p.opts.timeoutSeconds) * time.Second
	p.timer = p.g.clk.AfterFunc(timeout, func() { p.timedOut(attempt) })
	return attempt
}

func (p *pending) send(attempt int) {
	p.logger.Debug("emit", "attempt", attempt)
	err := p.sock.EmitWithAck(transport.EventAPI, func(args transport.Args) {
		p.acked(attempt, args)
	}, p.operation, p.payload)
	if err != nil {
		// Treated like a dropped emission; a reconnection or the deadline settles it.
		p.logger.Warn("emit failed", "attempt", attempt, "error", err)
	}
}

// settleLocked marks the call finished and stops the deadline.
func (p *pending) settleLocked() {
	p.done = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *pending) acked(attempt int, args transport.Args) {
	p.mu.Lock()
	if p.done || attempt != p.attempts {
		p.mu.Unlock()
		p.logger.Debug("ignoring late response", "attempt", attempt)
		return
	}
	p.settleLocked()
	p.mu.Unlock()

	p.result <- p.decode(args)
}

func (p *pending) decode(args transport.Args) result {
	raw, err := args.Bytes(0)
	if err != nil {
		return result{err: fmt.Errorf("read response: %w", err)}
	}

	var env codec.Envelope
	if err := p.g.codec.Unmarshal(raw, &env); err != nil {
		return result{err: fmt.Errorf("deserialize response: %w", err)}
	}
	if env.Code != "" {
		p.logger.Info("server error", "code", env.Code, "description", env.Description)
		return result{err: &Error{Code: env.Code, Description: env.Description}}
	}
	return result{data: env.Data}
}

func (p *pending) reconnected() {
	p.mu.Lock()
	if p.done || p.attempts == 0 {
		p.mu.Unlock()
		return
	}
	if p.attempts >= p.opts.attempts {
		p.settleLocked()
		n := p.attempts
		p.mu.Unlock()

		p.logger.Warn("attempts exhausted", "attempts", n)
		p.result <- result{err: exhaustedError(p.label, p.operation, n)}
		return
	}
	attempt := p.armLocked()
	p.mu.Unlock()

	p.logger.Info("re-emitting after reconnection", "attempt", attempt)
	p.g.metrics.Retry(string(p.kind))
	p.send(attempt)
}

func (p *pending) timedOut(attempt int) {
	p.mu.Lock()
	if p.done || attempt != p.attempts {
		p.mu.Unlock()
		return
	}
	p.settleLocked()
	n := p.attempts
	p.mu.Unlock()

	p.logger.Warn("timed out", "attempts", n, "timeout_seconds", p.opts.timeoutSeconds)
	p.result <- result{err: timeoutError(p.label, p.operation, p.opts.timeoutSeconds, n)}
}

func (p *pending) abandon() {
	p.mu.Lock()
	p.settleLocked()
	p.mu.Unlock()
}
