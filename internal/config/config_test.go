package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: portfolio-web
realtime:
  url: wss://realtime.example.com/ws
  protocols: [portfolio.v1]
  heartbeat_interval: 15s
auth:
  mode: static
  user:
    id: user-42
    role: admin
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "portfolio-web" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "portfolio-web")
	}
	if cfg.Realtime.URL != "wss://realtime.example.com/ws" {
		t.Errorf("Realtime.URL = %q, want %q", cfg.Realtime.URL, "wss://realtime.example.com/ws")
	}
	if len(cfg.Realtime.Protocols) != 1 || cfg.Realtime.Protocols[0] != "portfolio.v1" {
		t.Errorf("Realtime.Protocols = %v, want [portfolio.v1]", cfg.Realtime.Protocols)
	}
	if cfg.Realtime.HeartbeatInterval != 15*time.Second {
		t.Errorf("Realtime.HeartbeatInterval = %v, want 15s", cfg.Realtime.HeartbeatInterval)
	}
	if cfg.Auth.User.Role != "admin" {
		t.Errorf("Auth.User.Role = %q, want %q", cfg.Auth.User.Role, "admin")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_REALTIME_TOKEN", "tok-secret")

	yaml := `
instance:
  id: portfolio-web
realtime:
  url: wss://realtime.example.com/ws
  token: ${TEST_REALTIME_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Realtime.Token != "tok-secret" {
		t.Errorf("Realtime.Token = %q, want %q", cfg.Realtime.Token, "tok-secret")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: portfolio-web
realtime:
  url: wss://realtime.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Realtime.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Realtime.HeartbeatInterval = %v, want default %v", cfg.Realtime.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Realtime.BufferSize != DefaultBufferSize {
		t.Errorf("Realtime.BufferSize = %d, want default %d", cfg.Realtime.BufferSize, DefaultBufferSize)
	}
	if cfg.Realtime.Reconnect.BaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Reconnect.BaseDelay = %v, want default %v", cfg.Realtime.Reconnect.BaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Realtime.Reconnect.MaxAttempts != DefaultMaxReconnectAttempts {
		t.Errorf("Reconnect.MaxAttempts = %d, want default %d", cfg.Realtime.Reconnect.MaxAttempts, DefaultMaxReconnectAttempts)
	}
	if cfg.Auth.Mode != DefaultAuthMode {
		t.Errorf("Auth.Mode = %q, want default %q", cfg.Auth.Mode, DefaultAuthMode)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Instance: InstanceConfig{ID: "portfolio-web"},
			Realtime: RealtimeConfig{
				URL: "wss://realtime.example.com/ws",
				Reconnect: ReconnectConfig{
					BaseDelay:   time.Second,
					MaxDelay:    30 * time.Second,
					MaxAttempts: 5,
				},
			},
			Auth: AuthConfig{Mode: "static"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing realtime url",
			mutate:  func(c *Config) { c.Realtime.URL = "" },
			wantErr: "realtime.url is required",
		},
		{
			name:    "http realtime url",
			mutate:  func(c *Config) { c.Realtime.URL = "https://realtime.example.com/ws" },
			wantErr: `realtime.url must be a ws:// or wss:// URL, got "https://realtime.example.com/ws"`,
		},
		{
			name:    "base delay exceeds max delay",
			mutate:  func(c *Config) { c.Realtime.Reconnect.BaseDelay = time.Minute },
			wantErr: "realtime.reconnect.base_delay (1m0s) cannot exceed max_delay (30s)",
		},
		{
			name:    "unknown auth mode",
			mutate:  func(c *Config) { c.Auth.Mode = "oauth" },
			wantErr: `auth.mode must be static or http, got "oauth"`,
		},
		{
			name:    "http auth mode without base url",
			mutate:  func(c *Config) { c.Auth.Mode = "http" },
			wantErr: "auth.base_url is required when auth.mode is http",
		},
		{
			name: "recorder enabled without database host",
			mutate: func(c *Config) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 100}
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "recorder min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 100}
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 5, MinConns: 10,
				}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name: "valid config with recorder",
			mutate: func(c *Config) {
				c.Recorder = RecorderConfig{Enabled: true, BatchSize: 100, FlushInterval: time.Second}
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 10, MinConns: 2,
				}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
