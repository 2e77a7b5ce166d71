package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBufferSize           = 256
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultAuthMode             = "static"
	DefaultLocation             = "/"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultBatchSize            = 100
	DefaultFlushInterval        = 1 * time.Second
)

func (c *Config) applyDefaults() {
	// Realtime defaults
	if c.Realtime.HeartbeatInterval == 0 {
		c.Realtime.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Realtime.HandshakeTimeout == 0 {
		c.Realtime.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Realtime.WriteTimeout == 0 {
		c.Realtime.WriteTimeout = DefaultWriteTimeout
	}
	if c.Realtime.BufferSize == 0 {
		c.Realtime.BufferSize = DefaultBufferSize
	}
	if c.Realtime.Reconnect.BaseDelay == 0 {
		c.Realtime.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if c.Realtime.Reconnect.MaxDelay == 0 {
		c.Realtime.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Realtime.Reconnect.MaxAttempts == 0 {
		c.Realtime.Reconnect.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if c.Realtime.Location == "" {
		c.Realtime.Location = DefaultLocation
	}

	// Auth defaults
	if c.Auth.Mode == "" {
		c.Auth.Mode = DefaultAuthMode
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
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
