package session

import (
	"time"

	"github.com/rickgao/socksession/internal/metrics"
)

// MaxInactivityMinutes is seven days.
const MaxInactivityMinutes = 7 * 24 * 60

// clampInactivity converts minutes to a timeout. Zero disables the timeout;
// negative values and values above seven days become seven days.
func clampInactivity(minutes int) time.Duration {
	if minutes == 0 {
		return 0
	}
	if minutes < 0 || minutes > MaxInactivityMinutes {
		minutes = MaxInactivityMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// InactivityTimeout returns the effective timeout. Zero means disabled.
func (m *Manager) InactivityTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inactivity
}

// SetInactivityTimeout changes the timeout. A running timer restarts from now
// with the new value.
func (m *Manager) SetInactivityTimeout(minutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inactivity = clampInactivity(minutes)
	if m.session.Connected() {
		m.armInactivityLocked()
	}
}

// RecordActivity restarts the inactivity timer from now.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Connected() {
		m.armInactivityLocked()
	}
}

func (m *Manager) armInactivityLocked() {
	m.stopInactivityLocked()
	if m.inactivity <= 0 || m.closed {
		return
	}
	gen := m.inactivityGen
	m.inactivityTimer = m.clk.AfterFunc(m.inactivity, func() { m.inactivityExpired(gen) })
}

func (m *Manager) stopInactivityLocked() {
	m.inactivityGen++
	if m.inactivityTimer != nil {
		m.inactivityTimer.Stop()
		m.inactivityTimer = nil
	}
}

func (m *Manager) inactivityExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.inactivityGen || m.closed {
		m.mu.Unlock()
		return
	}
	m.inactivityTimer = nil
	timeout := m.inactivity
	m.mu.Unlock()

	m.logger.Info("inactivity timeout", "after", timeout)
	m.metrics.SessionEvent(metrics.EventInactivity)
	m.Logout(LogoutReasonInactivity)
}
