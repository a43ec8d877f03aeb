package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "github_config.json"))
	require.NoError(t, err)

	o := s.OAuth()
	assert.Equal(t, DefaultProvider, o.Provider)
	assert.Equal(t, DefaultRedirectURI, o.RedirectURI)
	assert.Equal(t, []string{"read:user", "user:email"}, o.Scopes())
	assert.False(t, o.Configured())
	assert.Equal(t, []string{"client_id", "client_secret"}, o.Missing())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "github_config.json")

	s, err := Load(path)
	require.NoError(t, err)
	s.SetClientID(" abc ")
	s.SetClientSecret("shh")
	require.NoError(t, s.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "abc", onDisk["client_id"])
	assert.Equal(t, DefaultRedirectURI, onDisk["redirect_uri"])

	reloaded, err := Load(path)
	require.NoError(t, err)
	o := reloaded.OAuth()
	assert.True(t, o.Configured())
	assert.Equal(t, "abc", o.ClientID)
	assert.Equal(t, "shh", o.ClientSecret)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"client_id": "id",
		"client_secret": "secret",
		"redirect_uri": "http://127.0.0.1:9000/cb",
		"scope": "read:user"
	}`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)

	o := s.OAuth()
	assert.Equal(t, "http://127.0.0.1:9000/cb", o.RedirectURI)
	assert.Equal(t, DefaultProvider, o.Provider)
	assert.Equal(t, []string{"read:user"}, o.Scopes())
}

func TestSetOAuthAppliesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "github_config.json"))
	require.NoError(t, err)

	s.SetOAuth(OAuth{Provider: "oidc", ClientID: "id", ClientSecret: "secret", Issuer: "https://idp.example.com"})

	o := s.OAuth()
	assert.Equal(t, "oidc", o.Provider)
	assert.Equal(t, DefaultScope, o.Scope)
	assert.Equal(t, "https://idp.example.com", o.Issuer)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
