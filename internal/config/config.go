package config

import "time"

// Config is the root configuration for a bridge instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Broker    BrokerConfig    `yaml:"broker"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Relay     RelayConfig     `yaml:"relay"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this bridge.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// BrokerConfig holds brokerage API settings.
type BrokerConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	RedirectURI  string        `yaml:"redirect_uri"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CatalogConfig holds instrument catalog resolution settings.
type CatalogConfig struct {
	URL         string        `yaml:"url"`          // gzip-compressed JSON catalog endpoint
	Underlying  string        `yaml:"underlying"`   // e.g. "BANKNIFTY"
	TargetMonth string        `yaml:"target_month"` // "YYYY-MM"
	Exchange    string        `yaml:"exchange"`     // e.g. "NSE_FO"
	Timeout     time.Duration `yaml:"timeout"`
}

// RelayConfig holds feed relay settings.
type RelayConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	SendBuffer       int           `yaml:"send_buffer"` // frames buffered per downstream client
}

// SchedulerConfig holds signal scheduler settings.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Buffer   int           `yaml:"buffer"`
}

// ServerConfig holds the client-facing HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the optional session-audit database. Auditing is
// enabled only when a host is configured.
type DatabaseConfig struct {
	Audit DBConfig `yaml:"audit"`
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
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
