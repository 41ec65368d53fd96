package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBrokerBaseURL    = "https://api.upstox.com/v2"
	DefaultBrokerTimeout    = 30 * time.Second
	DefaultCatalogTimeout   = 30 * time.Second
	DefaultExchange         = "NSE_FO"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultSendBuffer       = 256
	DefaultTickInterval     = 30 * time.Second
	DefaultSignalBuffer     = 16
	DefaultServerPort       = 8080
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *Config) applyDefaults() {
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = DefaultBrokerBaseURL
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = DefaultBrokerTimeout
	}

	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = DefaultCatalogTimeout
	}
	if c.Catalog.Exchange == "" {
		c.Catalog.Exchange = DefaultExchange
	}

	if c.Relay.HandshakeTimeout == 0 {
		c.Relay.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}
	if c.Relay.SendBuffer == 0 {
		c.Relay.SendBuffer = DefaultSendBuffer
	}

	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = DefaultTickInterval
	}
	if c.Scheduler.Buffer == 0 {
		c.Scheduler.Buffer = DefaultSignalBuffer
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	if c.Database.Audit.Host != "" {
		applyDBDefaults(&c.Database.Audit)
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
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
