package config

import (
	"errors"
	"fmt"
	"regexp"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Validate checks that all required fields are set and values are valid.
// OAuth credentials are deliberately not required here: their absence is a
// per-request ConfigurationError from the token exchange, not a boot failure.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Catalog.URL == "" {
		return errors.New("catalog.url is required")
	}
	if c.Catalog.Underlying == "" {
		return errors.New("catalog.underlying is required")
	}
	if c.Catalog.TargetMonth == "" {
		return errors.New("catalog.target_month is required")
	}
	if !monthPattern.MatchString(c.Catalog.TargetMonth) {
		return fmt.Errorf("catalog.target_month must be YYYY-MM, got %q", c.Catalog.TargetMonth)
	}

	if c.Relay.SendBuffer < 1 {
		return errors.New("relay.send_buffer must be >= 1")
	}

	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be > 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Audit.Host != "" {
		if err := c.Database.Audit.validate("database.audit"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
