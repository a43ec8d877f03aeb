package resolver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, seed ...auth.Identity) (*DirectoryResolver, *store.Directory) {
	t.Helper()

	fs := store.NewFileStore(filepath.Join(t.TempDir(), "auth_users.json"))
	if len(seed) > 0 {
		require.NoError(t, fs.SaveAll(context.Background(), seed))
	}
	dir, err := store.OpenDirectory(context.Background(), fs)
	require.NoError(t, err)

	r := NewDirectoryResolver(dir)
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return r, dir
}

func octocat() *auth.Profile {
	return &auth.Profile{
		Provider:       "github",
		ProviderUserID: "42",
		Login:          "octocat",
		Name:           "The Octocat",
		Email:          "octo@example.com",
		AvatarURL:      "https://avatars.example.com/u/42",
	}
}

func TestReconcileCreatesOnFirstLogin(t *testing.T) {
	r, dir := newResolver(t)

	identity, err := r.Reconcile(context.Background(), octocat())
	require.NoError(t, err)
	assert.Equal(t, "42", identity.AccountID)
	assert.Equal(t, "The Octocat", identity.DisplayName)
	assert.Equal(t, auth.ProviderExternal, identity.Provider)

	stored, ok := dir.Get("42")
	require.True(t, ok)
	assert.Equal(t, *identity, stored)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r, dir := newResolver(t)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, octocat())
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, octocat())
	require.NoError(t, err)

	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Len(t, dir.All(), 1)
}

func TestReconcileRefreshesProfileFacts(t *testing.T) {
	r, dir := newResolver(t)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, octocat())
	require.NoError(t, err)

	changed := octocat()
	changed.Name = "Mona Lisa Octocat"
	changed.Email = ""
	identity, err := r.Reconcile(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, "Mona Lisa Octocat", identity.DisplayName)
	assert.Empty(t, identity.Email)
	assert.Len(t, dir.All(), 1)
}

func TestReconcileFallsBackToLogin(t *testing.T) {
	r, _ := newResolver(t)

	p := octocat()
	p.Name = ""
	identity, err := r.Reconcile(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.DisplayName)
}

func TestReconcileAccountIDCollision(t *testing.T) {
	r, _ := newResolver(t, auth.Identity{AccountID: "42", Provider: auth.ProviderLocal})

	_, err := r.Reconcile(context.Background(), octocat())
	require.True(t, auth.IsCode(err, auth.TextCodeDuplicateAccount))
}
