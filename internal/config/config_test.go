package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.IdentityBackend)
	assert.Equal(t, BackendFile, cfg.SessionBackend)
	assert.True(t, cfg.PersistentSessions())
	assert.Equal(t, filepath.Join(".", "sessions.json"), cfg.SessionPath())
	assert.Equal(t, 30*time.Second, cfg.NetworkTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.LoginTimeout)
	assert.Equal(t, filepath.Join(".", "github_config.json"), cfg.SettingsPath())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COLLAB_DATA_DIR", "/var/lib/collab")
	t.Setenv("COLLAB_IDENTITY_FILE", "/etc/collab/users.json")
	t.Setenv("COLLAB_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/collab/users.json", cfg.IdentityPath())
	assert.Equal(t, filepath.Join("/var/lib/collab", "github_config.json"), cfg.SettingsPath())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoadRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("COLLAB_IDENTITY_BACKEND", BackendPostgres)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownSessionBackend(t *testing.T) {
	t.Setenv("COLLAB_SESSION_BACKEND", "memcached")

	_, err := Load()
	require.Error(t, err)
}

func TestMemorySessionsDoNotPersist(t *testing.T) {
	t.Setenv("COLLAB_SESSION_BACKEND", BackendMemory)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.PersistentSessions())
}

func TestLoadRejectsNonPositiveSessionTTL(t *testing.T) {
	t.Setenv("COLLAB_SESSION_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
}
