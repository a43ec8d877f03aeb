package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "collab:session:"

// RedisStore keeps each session under its own key with a TTL matching
// ExpiresAt, so redis evicts it without a sweeper.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: redisKeyPrefix,
		now:    time.Now,
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Create refuses to overwrite a live session with the same id.
func (r *RedisStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" || s.AccountID == "" {
		return ErrInvalidSession
	}

	data, ttl, err := r.encode(s)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	created, err := r.client.SetNX(ctx, r.key(s.SessionID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	if !created {
		return ErrSessionExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}

	// the key TTL is rounded by redis; ExpiresAt is authoritative
	if s.Expired(r.now()) {
		_ = r.client.Del(ctx, r.key(sessionID)).Err()
		return nil, nil
	}
	return &s, nil
}

// Update rewrites a live session and resets its TTL. SET XX keeps a
// concurrent Delete from being undone.
func (r *RedisStore) Update(ctx context.Context, s Session) error {
	if s.SessionID == "" {
		return ErrInvalidSession
	}

	data, ttl, err := r.encode(s)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		n, err := r.client.Del(ctx, r.key(s.SessionID)).Result()
		if err != nil {
			return fmt.Errorf("session: delete: %w", err)
		}
		if n == 0 {
			return ErrSessionNotFound
		}
		return nil
	}

	updated, err := r.client.SetXX(ctx, r.key(s.SessionID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	if !updated {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

func (r *RedisStore) encode(s Session) ([]byte, time.Duration, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, 0, fmt.Errorf("session: encode: %w", err)
	}
	return data, s.ExpiresAt.Sub(r.now()), nil
}
