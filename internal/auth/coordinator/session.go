package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/callback"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusCodeReceived    Status = "code_received"
	StatusExchanging      Status = "exchanging"
	StatusFetchingProfile Status = "fetching_profile"
	StatusComplete        Status = "complete"
	StatusFailed          Status = "failed"
)

// next lists the single forward step of every non-terminal status.
// StatusFailed is reachable from all of them.
var next = map[Status]Status{
	StatusPending:         StatusCodeReceived,
	StatusCodeReceived:    StatusExchanging,
	StatusExchanging:      StatusFetchingProfile,
	StatusFetchingProfile: StatusComplete,
}

func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

func canAdvance(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	return to == StatusFailed || next[from] == to
}

// Outcome is what Poll reports. Identity is set when Status is complete,
// Err when it is failed.
type Outcome struct {
	Status   Status
	Identity *auth.Identity
	Err      error
}

// StillPending reports whether the login has not finished yet.
func (o Outcome) StillPending() bool {
	return !o.Status.Terminal()
}

// Session is one login attempt. It owns its callback listener.
type Session struct {
	ID         string
	StateToken string
	StartedAt  time.Time
	AuthURL    string
	Provider   string

	verifier string
	listener *callback.Listener
	cancel   context.CancelFunc
	done     chan struct{}

	mu      sync.Mutex
	status  Status
	outcome Outcome
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed once the outcome is final and the port is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// CallbackURL is the address the listener actually bound.
func (s *Session) CallbackURL() string {
	return s.listener.URL()
}

// advance moves to the given status. Skipping a step is a programming error.
func (s *Session) advance(to Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canAdvance(s.status, to) {
		panic(fmt.Sprintf("coordinator: illegal transition %s -> %s", s.status, to))
	}
	s.status = to
}

func (s *Session) finish(o Outcome) {
	s.advance(o.Status)

	s.mu.Lock()
	s.outcome = o
	s.mu.Unlock()
}

func (s *Session) result() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}
