package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectionWaitSeconds = 15
	DefaultTimeoutSeconds          = 120
	DefaultAttempts                = 3
	DefaultHandshakeTimeout        = 10 * time.Second
	DefaultWriteTimeout            = 5 * time.Second
	DefaultPingInterval            = 25 * time.Second
	DefaultPingTimeout             = 60 * time.Second
	DefaultReconnectBaseDelay      = 1 * time.Second
	DefaultReconnectMaxDelay       = 30 * time.Second
	DefaultStoreDriver             = DriverMemory
	DefaultNamespace               = "default"
	DefaultDBPort                  = 5432
	DefaultDBSSLMode               = "prefer"
	DefaultMaxConns                = 4
	DefaultMinConns                = 1
	DefaultMetricsPath             = "/metrics"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	// Session defaults (inactivity 0 means disabled and is left alone)
	if c.Session.ReconnectionWaitSeconds == 0 {
		c.Session.ReconnectionWaitSeconds = DefaultReconnectionWaitSeconds
	}

	// Gateway defaults
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Gateway.Attempts == 0 {
		c.Gateway.Attempts = DefaultAttempts
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.ReconnectBaseDelay == 0 {
		c.Transport.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Transport.ReconnectMaxDelay == 0 {
		c.Transport.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Store defaults
	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.Namespace == "" {
		c.Store.Namespace = DefaultNamespace
	}
	if c.Store.Driver == DriverPostgres {
		applyDBDefaults(&c.Store.Postgres)
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
