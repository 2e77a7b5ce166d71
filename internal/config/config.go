package config

import "time"

// Config is the root configuration for a realtime client instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// RealtimeConfig holds realtime service connection settings.
type RealtimeConfig struct {
	URL               string          `yaml:"url"`
	Protocols         []string        `yaml:"protocols"`
	Token             string          `yaml:"token"` // Bearer token for the handshake
	HeartbeatInterval time.Duration   `yaml:"heartbeat_interval"`
	HandshakeTimeout  time.Duration   `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	BufferSize        int             `yaml:"buffer_size"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
	PresenceAdminOnly bool            `yaml:"presence_admin_only"`
	Location          string          `yaml:"location"` // Reported in our presence record
}

// ReconnectConfig tunes the exponential backoff.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// AuthConfig selects how the current user is resolved.
type AuthConfig struct {
	Mode    string     `yaml:"mode"` // "static" or "http"
	BaseURL string     `yaml:"base_url"`
	Token   string     `yaml:"token"`
	User    UserConfig `yaml:"user"` // static mode only
}

// UserConfig is a fixed identity for static auth mode.
type UserConfig struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

// DatabaseConfig holds the PostgreSQL connection for the analytics
// recorder. Only required when the recorder is enabled.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
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

// RecorderConfig holds analytics batch writer settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}
