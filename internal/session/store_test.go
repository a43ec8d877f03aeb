package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, ttl time.Duration) Session {
	t.Helper()
	id, err := GenerateID()
	require.NoError(t, err)
	now := time.Now()
	return Session{
		SessionID: id,
		AccountID: "42",
		Provider:  "external",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	s := newSession(t, time.Hour)

	require.ErrorIs(t, store.Create(ctx, Session{SessionID: "x"}), ErrInvalidSession)
	require.NoError(t, store.Create(ctx, s))
	require.ErrorIs(t, store.Create(ctx, s), ErrSessionExists)

	got, err := store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "42", got.AccountID)

	missing, err := store.Get(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.ErrorIs(t, store.Update(ctx, newSession(t, time.Hour)), ErrSessionNotFound)

	extended := s
	extended.ExpiresAt = s.ExpiresAt.Add(time.Hour)
	require.NoError(t, store.Update(ctx, extended))
	got, err = store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, extended.ExpiresAt, got.ExpiresAt, time.Millisecond)

	s.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, store.Update(ctx, s))
	gone, err := store.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	other := newSession(t, time.Hour)
	require.NoError(t, store.Create(ctx, other))
	require.NoError(t, store.Delete(ctx, other.SessionID))
	deleted, err := store.Get(ctx, other.SessionID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
	require.ErrorIs(t, store.Update(ctx, other), ErrSessionNotFound)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreDropsExpired(t *testing.T) {
	store := NewMemoryStore()
	s := newSession(t, time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	store.now = func() time.Time { return s.ExpiresAt }
	got, err := store.Get(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore(t *testing.T) {
	storeContract(t, NewFileStore(filepath.Join(t.TempDir(), "sessions.json")))
}

func TestFileStoreSharedAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	s := newSession(t, time.Hour)
	require.NoError(t, NewFileStore(path).Create(ctx, s))

	other := NewFileStore(path)
	got, err := other.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.AccountID, got.AccountID)

	require.NoError(t, other.Delete(ctx, s.SessionID))
	got, err = NewFileStore(path).Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStoreDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := NewFileStore(path)
	s := newSession(t, time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	later := NewFileStore(path)
	later.now = func() time.Time { return s.ExpiresAt }
	got, err := later.Get(context.Background(), s.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// an expired id may be reused
	require.NoError(t, later.Create(context.Background(), s))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storeContract(t, NewRedisStore(client))
}

func TestRedisStoreSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	s := newSession(t, time.Hour)
	require.NoError(t, store.Create(context.Background(), s))

	ttl := mr.TTL("collab:session:" + s.SessionID)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	require.Error(t, store.Create(context.Background(), newSession(t, -time.Minute)))
}

func TestRedisStoreUpdateResetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	s := newSession(t, time.Minute)
	require.NoError(t, store.Create(context.Background(), s))

	s.ExpiresAt = time.Now().Add(2 * time.Hour)
	require.NoError(t, store.Update(context.Background(), s))
	assert.Greater(t, mr.TTL(redisKeyPrefix+s.SessionID), time.Hour)

	mr.FastForward(3 * time.Hour)
	require.ErrorIs(t, store.Update(context.Background(), s), ErrSessionNotFound)
}
