package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidSession  = errors.New("session: missing session_id or account_id")
	ErrSessionExists   = errors.New("session: id already in use")
	ErrSessionNotFound = errors.New("session: not found")
)

// Session marks an identity as logged in on this machine.
// It stores only an identity pointer, never credentials or tokens.
type Session struct {
	SessionID string    `json:"session_id"`
	AccountID string    `json:"account_id"`
	Provider  string    `json:"provider"` // local or external
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry time
}

// Expired reports whether the session is past its absolute expiry.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) when the session does not exist or has expired.
// Update only replaces a live session; an ExpiresAt in the past drops it.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error
}
