package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Realtime.URL == "" {
		return errors.New("realtime.url is required")
	}
	if !strings.HasPrefix(c.Realtime.URL, "ws://") && !strings.HasPrefix(c.Realtime.URL, "wss://") {
		return fmt.Errorf("realtime.url must be a ws:// or wss:// URL, got %q", c.Realtime.URL)
	}
	if c.Realtime.Reconnect.MaxAttempts < 1 {
		return errors.New("realtime.reconnect.max_attempts must be >= 1")
	}
	if c.Realtime.Reconnect.BaseDelay > c.Realtime.Reconnect.MaxDelay {
		return fmt.Errorf("realtime.reconnect.base_delay (%v) cannot exceed max_delay (%v)",
			c.Realtime.Reconnect.BaseDelay, c.Realtime.Reconnect.MaxDelay)
	}

	switch c.Auth.Mode {
	case "static":
	case "http":
		if c.Auth.BaseURL == "" {
			return errors.New("auth.base_url is required when auth.mode is http")
		}
	default:
		return fmt.Errorf("auth.mode must be static or http, got %q", c.Auth.Mode)
	}

	if c.Recorder.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
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
