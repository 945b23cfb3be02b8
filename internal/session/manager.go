package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/socksession/internal/clock"
	"github.com/rickgao/socksession/internal/metrics"
	"github.com/rickgao/socksession/internal/store"
	"github.com/rickgao/socksession/internal/transport"
)

// Errors
var (
	ErrUserNotConnected = errors.New("USER_NOT_CONNECTED")
	ErrClosed           = errors.New("manager closed")
	ErrNoDialer         = errors.New("no dialer configured")
)

// Unauthorized reasons with dedicated handling.
const (
	ReasonWrongUser      = "wrong_user"
	ReasonSessionExpired = "session_expired"
)

// LogoutReasonInactivity is sent when the inactivity timer elapses.
const LogoutReasonInactivity = "inactive_session_timeout"

// Defaults
const (
	DefaultReconnectWait = 15 * time.Second
	DefaultStoreTimeout  = 5 * time.Second
)

// Config configures a Manager.
type Config struct {
	URL       string // Socket URL
	LoginURL  string // Redirect target when the session is rejected
	LogoutURL string // Redirect target after logout, falls back to LoginURL

	Token                    string        // Seeds the store when it holds no token
	InactivityTimeoutMinutes int           // 0 disables
	ReconnectWait            time.Duration // Max wait in Connect (default 15s)
	StoreTimeout             time.Duration // Per-operation store timeout (default 5s)

	Dialer    transport.Dialer
	Store     store.Store // default in-memory
	Navigator Navigator   // default logs the request
	Clock     clock.Clock // default real time
	Metrics   *metrics.Metrics
}

// AuthenticatePayload is the argument of the authenticate event.
type AuthenticatePayload struct {
	Token  string `json:"token"`
	Origin string `json:"origin"`
}

// Manager owns the socket, the authentication handshake and the Session.
type Manager struct {
	cfg     Config
	store   store.Store
	nav     Navigator
	clk     clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	session   *Session
	setupOnce sync.Once

	mu     sync.Mutex
	sock   transport.Socket
	state  State
	closed bool

	// Token refresh. refreshGen invalidates callbacks of cancelled timers.
	refreshTimer  clock.Timer
	graceTimer    clock.Timer
	refreshGen    uint64
	tokenLifetime time.Duration
	sentToken     string

	inactivity      time.Duration
	inactivityTimer clock.Timer
	inactivityGen   uint64

	connListeners   observers[func(bool)]
	connectHooks    observers[func(*Session)]
	disconnectHooks observers[func()]
	expirationHooks observers[func()]
	reconnectHooks  observers[func()]
}

// NewManager creates a Manager. Nothing is dialled until the first Connect.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultReconnectWait
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.LogoutURL == "" {
		cfg.LogoutURL = cfg.LoginURL
	}

	m := &Manager{
		cfg:        cfg,
		store:      cfg.Store,
		nav:        cfg.Navigator,
		clk:        cfg.Clock,
		metrics:    cfg.Metrics,
		logger:     logger,
		session:    newSession(),
		state:      StateDisconnected,
		inactivity: clampInactivity(cfg.InactivityTimeoutMinutes),
	}
	if m.store == nil {
		m.store = store.NewMemory()
	}
	if m.nav == nil {
		m.nav = logNavigator{logger: logger}
	}
	if m.clk == nil {
		m.clk = clock.Real()
	}
	return m
}

// Connect returns the socket once the session is authenticated. The first
// call dials. If the session is not connected within ReconnectWait the call
// fails with ErrUserNotConnected.
func (m *Manager) Connect(ctx context.Context) (transport.Socket, error) {
	sock, err := m.setup()
	if err != nil {
		return nil, err
	}
	if m.session.Connected() {
		return sock, nil
	}

	ready := make(chan struct{}, 1)
	remove := m.AddConnectionListener(func(connected bool) {
		if !connected {
			return
		}
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer remove()

	expired := make(chan struct{})
	timer := m.clk.AfterFunc(m.cfg.ReconnectWait, func() { close(expired) })
	defer timer.Stop()

	if m.session.Connected() {
		return sock, nil
	}

	select {
	case <-ready:
		return sock, nil
	case <-expired:
		m.logger.Warn("user not connected", "waited", m.cfg.ReconnectWait)
		return nil, ErrUserNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// setup dials the socket exactly once.
func (m *Manager) setup() (transport.Socket, error) {
	m.setupOnce.Do(func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed || m.cfg.Dialer == nil {
			return
		}

		m.seedToken()

		sock := m.cfg.Dialer.Dial(m.cfg.URL)
		sock.On(transport.EventConnect, m.handleConnect)
		sock.On(transport.EventDisconnect, m.handleDisconnect)
		sock.On(transport.EventConnectError, m.handleConnectError)
		sock.On(transport.EventAuthenticated, m.handleAuthenticated)
		sock.On(transport.EventUnauthorized, m.handleUnauthorized)
		sock.On(transport.EventLoggedOut, m.handleLoggedOut)

		m.mu.Lock()
		m.sock = sock
		m.state = StateConnecting
		m.mu.Unlock()

		m.logger.Info("connecting", "url", m.cfg.URL)
		sock.Connect()
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.sock == nil {
		return nil, ErrNoDialer
	}
	return m.sock, nil
}

func (m *Manager) seedToken() {
	if m.cfg.Token == "" {
		return
	}
	if _, ok := m.storeGet(store.KeyToken); ok {
		return
	}
	m.storeSet(store.KeyToken, m.cfg.Token)
}

// Logout asks the server to end the session. It does nothing before the
// socket exists.
func (m *Manager) Logout(reason string) {
	m.mu.Lock()
	sock := m.sock
	m.mu.Unlock()

	if sock == nil {
		m.logger.Debug("logout skipped, no socket", "reason", reason)
		return
	}

	token, _ := m.storeGet(store.KeyToken)
	m.logger.Info("logging out", "reason", reason)
	if err := sock.Emit(transport.EventLogout, token); err != nil {
		m.logger.Warn("emit logout failed", "error", err)
	}
}

// Session returns the live session object.
func (m *Manager) Session() *Session {
	return m.session
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close stops every timer and closes the socket. The manager cannot be
// reused afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopRefreshLocked()
	m.stopInactivityLocked()
	wasConnected := m.session.setConnected(false)
	m.state = StateDisconnected
	sock := m.sock
	m.mu.Unlock()

	if wasConnected {
		m.broadcastConnection(false)
	}
	if sock != nil {
		return sock.Close()
	}
	return nil
}

// AddConnectionListener registers fn for every change of the connected flag.
func (m *Manager) AddConnectionListener(fn func(connected bool)) func() {
	return m.connListeners.add(fn)
}

// OnConnect registers fn for every transition to connected.
func (m *Manager) OnConnect(fn func(*Session)) func() {
	return m.connectHooks.add(fn)
}

// OnDisconnect registers fn for every transition to disconnected.
func (m *Manager) OnDisconnect(fn func()) func() {
	return m.disconnectHooks.add(fn)
}

// OnSessionExpiration registers fn to handle an expired session. While at
// least one is registered the manager does not redirect to the login URL.
func (m *Manager) OnSessionExpiration(fn func()) func() {
	return m.expirationHooks.add(fn)
}

// OnReconnect registers fn for every re-authentication after a drop.
func (m *Manager) OnReconnect(fn func()) func() {
	return m.reconnectHooks.add(fn)
}

// broadcastConnection dispatches a connection change. A value overtaken by a
// later change is dropped so listeners never see a stale flag.
func (m *Manager) broadcastConnection(connected bool) {
	if m.session.Connected() != connected {
		m.logger.Debug("dropping stale connection broadcast", "connected", connected)
		return
	}
	m.metrics.SetConnected(connected)
	for _, fn := range m.connListeners.snapshot() {
		fn(connected)
	}
	if connected {
		for _, fn := range m.connectHooks.snapshot() {
			fn(m.session)
		}
		return
	}
	for _, fn := range m.disconnectHooks.snapshot() {
		fn()
	}
}

func (m *Manager) handleConnect(transport.Args) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = StateAuthenticating
	wasConnected := m.session.setConnected(false)
	sock := m.sock
	m.mu.Unlock()

	if wasConnected {
		m.broadcastConnection(false)
	}

	token, _ := m.storeGet(store.KeyToken)
	m.authenticate(sock, token)
}

func (m *Manager) authenticate(sock transport.Socket, token string) {
	origin, _ := m.storeGet(store.KeyOrigin)
	if err := sock.Emit(transport.EventAuthenticate, AuthenticatePayload{Token: token, Origin: origin}); err != nil {
		m.logger.Warn("emit authenticate failed", "error", err)
	}
}

func (m *Manager) handleAuthenticated(args transport.Args) {
	token, err := args.String(0)
	if err != nil || token == "" {
		m.logger.Warn("authenticated without token", "error", err)
		return
	}

	m.storeSet(store.KeyToken, token)
	if _, ok := m.storeGet(store.KeyOrigin); !ok {
		m.storeSet(store.KeyOrigin, token)
	}

	claims, err := decodeClaims(token)
	if err != nil {
		m.logger.Debug("token claims unavailable", "error", err)
	}
	lifetime := tokenDuration(claims)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.session.mergeClaims(claims)
	m.stopRefreshLocked()
	m.scheduleRefreshLocked(lifetime)

	transitioned := !m.session.Connected()
	first := false
	if transitioned {
		first = m.session.markConnected(m.clk.Now())
		m.armInactivityLocked()
	}
	m.state = StateConnected
	m.mu.Unlock()

	if !transitioned {
		m.logger.Debug("token renewed", "lifetime", lifetime)
		return
	}

	m.metrics.SessionEvent(metrics.EventConnected)
	if first {
		m.logger.Info("connected", "lifetime", lifetime)
	} else {
		m.logger.Info("reconnected", "reconnections", m.session.ConnectionErrorCount())
		m.metrics.SessionEvent(metrics.EventReconnected)
	}

	m.broadcastConnection(true)
	if !first {
		for _, fn := range m.reconnectHooks.snapshot() {
			fn()
		}
	}
}

func (m *Manager) handleDisconnect(args transport.Args) {
	reason, _ := args.String(0)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.state != StateLoggedOut {
		m.state = StateDisconnected
	}
	m.stopInactivityLocked()
	wasConnected := m.session.setConnected(false)
	m.mu.Unlock()

	m.logger.Info("disconnected", "reason", reason)
	if wasConnected {
		m.metrics.SessionEvent(metrics.EventDisconnected)
		m.broadcastConnection(false)
	}
}

func (m *Manager) handleConnectError(args transport.Args) {
	reason, _ := args.String(0)
	m.logger.Warn("connect error", "error", reason)
	m.metrics.SessionEvent(metrics.EventConnectError)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	wasConnected := m.session.setConnected(false)
	if wasConnected {
		m.stopInactivityLocked()
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if wasConnected {
		m.broadcastConnection(false)
	}
}

func (m *Manager) handleUnauthorized(args transport.Args) {
	reason, _ := args.String(0)
	m.unauthorized(reason)
}

func (m *Manager) unauthorized(reason string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopRefreshLocked()
	m.stopInactivityLocked()
	wasConnected := m.session.setConnected(false)
	m.state = StateDisconnected
	m.mu.Unlock()

	m.logger.Warn("unauthorized", "reason", reason)
	m.metrics.SessionEvent(metrics.EventUnauthorized)
	if wasConnected {
		m.broadcastConnection(false)
	}

	switch reason {
	case ReasonWrongUser:
		m.nav.Reload()
	case ReasonSessionExpired:
		if hooks := m.expirationHooks.snapshot(); len(hooks) > 0 {
			for _, fn := range hooks {
				fn()
			}
			return
		}
		m.nav.Redirect(m.cfg.LoginURL)
	default:
		m.nav.Redirect(m.cfg.LoginURL)
	}
}

func (m *Manager) handleLoggedOut(transport.Args) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopRefreshLocked()
	m.stopInactivityLocked()
	wasConnected := m.session.setConnected(false)
	m.state = StateLoggedOut
	m.mu.Unlock()

	m.logger.Info("logged out")
	m.metrics.SessionEvent(metrics.EventLoggedOut)
	if wasConnected {
		m.broadcastConnection(false)
	}

	m.storeDelete(store.KeyToken)
	m.storeDelete(store.KeyOrigin)
	m.nav.Redirect(m.cfg.LogoutURL)
}

func (m *Manager) storeGet(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()

	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Error("store get failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (m *Manager) storeSet(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()

	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.Error("store set failed", "key", key, "error", err)
	}
}

func (m *Manager) storeDelete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()

	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Error("store delete failed", "key", key, "error", err)
	}
}
