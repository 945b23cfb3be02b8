package config

import "time"

// Config is the root configuration for a session client.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Transport TransportConfig `yaml:"transport"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Debug     bool            `yaml:"debug"` // Enables debug-level logging
}

// ServerConfig holds the session server endpoints.
type ServerConfig struct {
	URL       string `yaml:"url"`        // WebSocket URL (ws:// or wss://)
	LoginURL  string `yaml:"login_url"`  // Redirect target when the session is rejected
	LogoutURL string `yaml:"logout_url"` // Redirect target after logout (falls back to login_url)
}

// SessionConfig holds connection manager settings.
type SessionConfig struct {
	Token                    string `yaml:"token"`                      // Seeds the store when no token is persisted yet
	InactivityTimeoutMinutes int    `yaml:"inactivity_timeout_minutes"` // 0 disables
	ReconnectionWaitSeconds  int    `yaml:"reconnection_wait_seconds"`  // Max wait for authentication in Connect
}

// GatewayConfig holds request gateway defaults.
type GatewayConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	Attempts       int `yaml:"attempts"`
}

// TransportConfig holds WebSocket settings.
type TransportConfig struct {
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// StoreConfig selects where the token and origin marker are persisted.
type StoreConfig struct {
	Driver    string   `yaml:"driver"`    // "memory", "sqlite" or "postgres"
	Path      string   `yaml:"path"`      // SQLite database file
	Namespace string   `yaml:"namespace"` // Separates profiles sharing one database
	Postgres  DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"` // 0 disables the metrics listener
	Path string `yaml:"path"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
