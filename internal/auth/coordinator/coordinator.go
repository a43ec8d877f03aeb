package coordinator

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/callback"
	"collab-auth/internal/auth/provider"
	"collab-auth/internal/auth/resolver"
	"collab-auth/internal/logger"
	"collab-auth/internal/settings"
	"collab-auth/internal/utils"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	DefaultLoginTimeout   = 5 * time.Minute

	stateBytes = 32
)

type Option func(*Coordinator)

// WithBrowserOpener replaces the default browser launcher.
func WithBrowserOpener(open func(url string) error) Option {
	return func(c *Coordinator) { c.openBrowser = open }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) { c.httpClient = client }
}

func WithNetworkTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.networkTimeout = d }
}

// WithLoginTimeout bounds the wait for the provider callback.
func WithLoginTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.loginTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator runs the authorization-code flow against an external provider
// through a transient local callback listener.
type Coordinator struct {
	registry *provider.Registry
	resolver resolver.Resolver

	openBrowser    func(url string) error
	httpClient     *http.Client
	networkTimeout time.Duration
	loginTimeout   time.Duration
	now            func() time.Time
}

func New(registry *provider.Registry, r resolver.Resolver, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:       registry,
		resolver:       r,
		openBrowser:    browser.OpenURL,
		networkTimeout: DefaultNetworkTimeout,
		loginTimeout:   DefaultLoginTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginLogin binds the callback listener, opens the browser on the
// provider's authorization page and returns the pending session. The
// caller must Close the session.
func (c *Coordinator) BeginLogin(ctx context.Context, cfg settings.OAuth) (*Session, error) {
	if !cfg.Configured() {
		return nil, auth.ConfigurationError(cfg.Missing()...)
	}

	buildCtx, cancel := context.WithTimeout(ctx, c.networkTimeout)
	p, err := c.registry.Build(buildCtx, provider.Config{
		Name:         cfg.Provider,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes(),
		Issuer:       cfg.Issuer,
		HTTPClient:   c.httpClient,
	})
	cancel()
	if err != nil {
		return nil, err
	}

	state, err := utils.RandomToken(stateBytes)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	// Bind before the browser is sent anywhere.
	listener, err := callback.Listen(cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	workerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:         uuid.NewString(),
		StateToken: state,
		StartedAt:  c.now(),
		AuthURL:    p.AuthCodeURL(state, verifier),
		Provider:   p.Name(),
		verifier:   verifier,
		listener:   listener,
		cancel:     stop,
		done:       make(chan struct{}),
		status:     StatusPending,
	}

	go c.run(workerCtx, s, p)

	logger.Info("login started", map[string]any{
		"session_id": s.ID,
		"provider":   s.Provider,
		"callback":   listener.Addr().String(),
	})

	if err := c.openBrowser(s.AuthURL); err != nil {
		logger.Warn("could not open browser", map[string]any{
			"session_id": s.ID,
			"error":      err.Error(),
		})
	}

	return s, nil
}

// Poll never blocks. It reports the current status until the outcome is
// final and the cached outcome after that.
func (c *Coordinator) Poll(s *Session) Outcome {
	select {
	case <-s.done:
		return s.result()
	default:
		return Outcome{Status: s.Status()}
	}
}

// Wait blocks until the outcome is final or ctx is done.
func (c *Coordinator) Wait(ctx context.Context, s *Session) Outcome {
	select {
	case <-s.done:
		return s.result()
	case <-ctx.Done():
		return c.Poll(s)
	}
}

// Close releases the port, cancels any in-flight step and waits for the
// session to settle. Safe to call more than once and after completion.
func (c *Coordinator) Close(s *Session) {
	s.cancel()
	_ = s.listener.Close()
	<-s.done
}

func (c *Coordinator) run(ctx context.Context, s *Session, p provider.OAuthProvider) {
	defer close(s.done)

	outcome := c.drive(ctx, s, p)

	// The port is free before anyone can observe the outcome.
	_ = s.listener.Close()
	s.finish(outcome)

	fields := map[string]any{
		"session_id": s.ID,
		"status":     string(outcome.Status),
		"elapsed_ms": c.now().Sub(s.StartedAt).Milliseconds(),
	}
	if outcome.Err != nil {
		fields["error"] = auth.Message(outcome.Err)
		fields["code"] = auth.TextCode(outcome.Err)
		logger.Warn("login failed", fields)
		return
	}
	fields["account_id"] = outcome.Identity.AccountID
	logger.Info("login complete", fields)
}

func (c *Coordinator) drive(ctx context.Context, s *Session, p provider.OAuthProvider) Outcome {
	timer := time.NewTimer(c.loginTimeout)
	defer timer.Stop()

	var res callback.Result
	select {
	case res = <-s.listener.Result():
	case <-timer.C:
		return failed(auth.NetworkTimeoutError("waiting for the login callback", nil))
	case <-ctx.Done():
		return failed(auth.CancelledError())
	}
	c.step(s, StatusCodeReceived)

	if res.Error != "" {
		return failed(auth.ProviderDeniedError(res.Error, res.Description))
	}
	if subtle.ConstantTimeCompare([]byte(res.State), []byte(s.StateToken)) != 1 {
		return failed(auth.CsrfError())
	}

	c.step(s, StatusExchanging)
	stepCtx, cancel := context.WithTimeout(ctx, c.networkTimeout)
	token, err := p.Exchange(stepCtx, res.Code, s.verifier)
	cancel()
	if err != nil {
		return failedUnlessCancelled(ctx, err)
	}

	c.step(s, StatusFetchingProfile)
	stepCtx, cancel = context.WithTimeout(ctx, c.networkTimeout)
	profile, err := p.FetchProfile(stepCtx, token)
	cancel()
	if err != nil {
		return failedUnlessCancelled(ctx, err)
	}

	identity, err := c.resolver.Reconcile(ctx, profile)
	if err != nil {
		return failedUnlessCancelled(ctx, err)
	}

	return Outcome{Status: StatusComplete, Identity: identity}
}

func (c *Coordinator) step(s *Session, to Status) {
	s.advance(to)
	logger.Debug("login step", map[string]any{
		"session_id": s.ID,
		"status":     string(to),
	})
}

func failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

func failedUnlessCancelled(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		return failed(auth.CancelledError())
	}
	return failed(err)
}
