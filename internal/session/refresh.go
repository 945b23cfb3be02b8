package session

import (
	"time"

	"github.com/rickgao/socksession/internal/store"
)

// scheduleRefreshLocked arms the refresh timer at half the token lifetime.
// Tokens without a lifetime are never refreshed.
func (m *Manager) scheduleRefreshLocked(lifetime time.Duration) {
	m.tokenLifetime = lifetime
	if lifetime <= 0 {
		return
	}
	gen := m.refreshGen
	m.refreshTimer = m.clk.AfterFunc(lifetime/2, func() { m.refresh(gen) })
}

// stopRefreshLocked cancels the refresh and grace timers.
func (m *Manager) stopRefreshLocked() {
	m.refreshGen++
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.sentToken = ""
}

// refresh re-sends authenticate with the token currently in the store and
// arms the grace timer for the rest of the lifetime.
func (m *Manager) refresh(gen uint64) {
	m.mu.Lock()
	if gen != m.refreshGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.refreshTimer = nil
	sock := m.sock
	m.mu.Unlock()

	token, _ := m.storeGet(store.KeyToken)

	m.mu.Lock()
	if gen != m.refreshGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.sentToken = token
	grace := m.tokenLifetime - m.tokenLifetime/2
	m.graceTimer = m.clk.AfterFunc(grace, func() { m.graceExpired(gen) })
	m.mu.Unlock()

	m.logger.Debug("refreshing token", "grace", grace)
	m.metrics.TokenRefresh("sent")
	m.authenticate(sock, token)
}

// graceExpired runs when no authenticated event answered a refresh.
func (m *Manager) graceExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.refreshGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.graceTimer = nil
	sent := m.sentToken
	m.mu.Unlock()

	current, ok := m.storeGet(store.KeyToken)
	if ok && current != "" && current != sent {
		m.logger.Info("token replaced externally, refreshing again")
		m.metrics.TokenRefresh("renewed")
		m.refresh(gen)
		return
	}

	m.metrics.TokenRefresh("expired")
	m.unauthorized(ReasonSessionExpired)
}
