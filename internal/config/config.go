package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type Config struct {
	DataDir      string `env:"COLLAB_DATA_DIR"      envDefault:"."`
	SettingsFile string `env:"COLLAB_SETTINGS_FILE" envDefault:"github_config.json"`
	IdentityFile string `env:"COLLAB_IDENTITY_FILE" envDefault:"auth_users.json"`

	IdentityBackend string `env:"COLLAB_IDENTITY_BACKEND" envDefault:"file"`
	DatabaseDSN     string `env:"COLLAB_DATABASE_DSN"`

	SessionBackend string        `env:"COLLAB_SESSION_BACKEND" envDefault:"file"`
	SessionFile    string        `env:"COLLAB_SESSION_FILE"    envDefault:"sessions.json"`
	SessionTTL     time.Duration `env:"COLLAB_SESSION_TTL"     envDefault:"24h"`
	RedisAddr      string        `env:"COLLAB_REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisPassword  string        `env:"COLLAB_REDIS_PASSWORD"`

	LoginTimeout   time.Duration `env:"COLLAB_LOGIN_TIMEOUT"   envDefault:"5m"`
	NetworkTimeout time.Duration `env:"COLLAB_NETWORK_TIMEOUT" envDefault:"30s"`
	PollInterval   time.Duration `env:"COLLAB_POLL_INTERVAL"   envDefault:"1s"`

	LogLevel  string `env:"COLLAB_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"COLLAB_LOG_FORMAT" envDefault:"json"`
}

// Load reads the process configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.IdentityBackend {
	case BackendFile:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: COLLAB_DATABASE_DSN is required for the postgres identity backend")
		}
	default:
		return fmt.Errorf("config: unknown identity backend %q", c.IdentityBackend)
	}

	switch c.SessionBackend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("config: unknown session backend %q", c.SessionBackend)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session ttl must be positive")
	}
	if c.PollInterval <= 0 || c.NetworkTimeout <= 0 || c.LoginTimeout <= 0 {
		return fmt.Errorf("config: poll interval and timeouts must be positive")
	}
	return nil
}

// SettingsPath resolves the OAuth settings file against the data dir.
func (c Config) SettingsPath() string {
	return c.resolve(c.SettingsFile)
}

// IdentityPath resolves the identity file against the data dir.
func (c Config) IdentityPath() string {
	return c.resolve(c.IdentityFile)
}

// SessionPath resolves the session file against the data dir.
func (c Config) SessionPath() string {
	return c.resolve(c.SessionFile)
}

// PersistentSessions reports whether a session outlives the process
// that created it.
func (c Config) PersistentSessions() bool {
	return c.SessionBackend != BackendMemory
}

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
