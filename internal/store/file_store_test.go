package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"collab-auth/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "auth_users.json"))

	identities, err := fs.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, identities)
}

func TestFileStoreSaveAllReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "auth_users.json")
	fs := NewFileStore(path)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, fs.SaveAll(context.Background(), []auth.Identity{{
		AccountID:      "42",
		Login:          "octocat",
		DisplayName:    "The Octocat",
		Provider:       auth.ProviderExternal,
		ProviderName:   "github",
		ProviderUserID: "42",
		CreatedAt:      created,
	}}))

	loaded, err := fs.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "The Octocat", loaded[0].DisplayName)
	assert.True(t, created.Equal(loaded[0].CreatedAt))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth_users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).LoadAll(context.Background())
	require.Error(t, err)
}
