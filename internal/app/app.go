package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/coordinator"
	"collab-auth/internal/auth/credentials"
	"collab-auth/internal/auth/provider"
	"collab-auth/internal/auth/provider/github"
	"collab-auth/internal/auth/provider/oidc"
	"collab-auth/internal/auth/resolver"
	"collab-auth/internal/config"
	"collab-auth/internal/logger"
	"collab-auth/internal/session"
	"collab-auth/internal/settings"
	"collab-auth/internal/store"
)

var ErrNotSignedIn = errors.New("not signed in")

type Option func(*options)

type options struct {
	coordinator []coordinator.Option
	factories   map[string]provider.Factory
	hashParams  credentials.Params
}

// WithCoordinatorOptions passes options through to the login coordinator.
func WithCoordinatorOptions(opts ...coordinator.Option) Option {
	return func(o *options) { o.coordinator = append(o.coordinator, opts...) }
}

// WithProviderFactory replaces or adds a provider factory.
func WithProviderFactory(name string, f provider.Factory) Option {
	return func(o *options) { o.factories[name] = f }
}

func WithHashParams(p credentials.Params) Option {
	return func(o *options) { o.hashParams = p }
}

// LoginObserver is told about every status change of a provider login.
type LoginObserver func(s *coordinator.Session, status coordinator.Status)

type App struct {
	cfg   config.Config
	infra *Infra

	settings    *settings.Store
	directory   *store.Directory
	credentials *credentials.Service
	coordinator *coordinator.Coordinator
	sessions    session.Store

	now func() time.Time
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{
		factories: map[string]provider.Factory{
			"github": func(ctx context.Context, c provider.Config) (provider.OAuthProvider, error) {
				return github.New(ctx, c)
			},
			"oidc": func(ctx context.Context, c provider.Config) (provider.OAuthProvider, error) {
				return oidc.New(ctx, c)
			},
		},
		hashParams: credentials.DefaultParams,
	}
	for _, opt := range opts {
		opt(&o)
	}

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	settingsStore, err := settings.Load(cfg.SettingsPath())
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	directory, err := store.OpenDirectory(ctx, infra.Identities)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	registry, err := newRegistry(o.factories)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	coordOpts := append([]coordinator.Option{
		coordinator.WithNetworkTimeout(cfg.NetworkTimeout),
		coordinator.WithLoginTimeout(cfg.LoginTimeout),
	}, o.coordinator...)

	logger.Info("collab-auth ready", map[string]any{
		"identities":       len(directory.All()),
		"identity_backend": cfg.IdentityBackend,
		"session_backend":  cfg.SessionBackend,
		"providers":        registry.Names(),
	})

	return &App{
		cfg:         cfg,
		infra:       infra,
		settings:    settingsStore,
		directory:   directory,
		credentials: credentials.NewService(directory, credentials.NewHasher(o.hashParams)),
		coordinator: coordinator.New(registry, resolver.NewDirectoryResolver(directory), coordOpts...),
		sessions:    infra.Sessions,
		now:         time.Now,
	}, nil
}

func newRegistry(factories map[string]provider.Factory) (*provider.Registry, error) {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := provider.NewRegistry()
	for _, name := range names {
		if err := registry.Register(name, factories[name]); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *App) Settings() *settings.Store {
	return a.settings
}

// LoginWithProvider drives one provider login to its end, polling every
// PollInterval. The callback port is always released before it returns.
func (a *App) LoginWithProvider(ctx context.Context, observe LoginObserver) (*session.Session, *auth.Identity, error) {
	s, err := a.coordinator.BeginLogin(ctx, a.settings.OAuth())
	if err != nil {
		return nil, nil, err
	}
	defer a.coordinator.Close(s)

	notify := func(status coordinator.Status) {
		if observe != nil {
			observe(s, status)
		}
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	last := s.Status()
	notify(last)

	for {
		select {
		case <-ctx.Done():
			return nil, nil, auth.CancelledError()
		case <-ticker.C:
		}

		out := a.coordinator.Poll(s)
		if out.Status != last {
			last = out.Status
			notify(last)
		}
		if out.StillPending() {
			continue
		}
		if out.Err != nil {
			return nil, nil, out.Err
		}

		sess, err := a.startSession(ctx, out.Identity)
		if err != nil {
			return nil, nil, err
		}
		return sess, out.Identity, nil
	}
}

func (a *App) Register(ctx context.Context, in credentials.RegisterInput) (*auth.Identity, error) {
	return a.credentials.Register(ctx, in)
}

// SignIn checks a local password and starts a session.
func (a *App) SignIn(ctx context.Context, accountID, password string) (*session.Session, *auth.Identity, error) {
	identity, err := a.credentials.Login(ctx, accountID, password)
	if err != nil {
		return nil, nil, err
	}

	sess, err := a.startSession(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return sess, identity, nil
}

// CurrentUser resolves a session to its identity and refreshes its expiry.
func (a *App) CurrentUser(ctx context.Context, sessionID string) (*auth.Identity, error) {
	if sessionID == "" {
		return nil, ErrNotSignedIn
	}

	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Expired(a.now()) {
		return nil, ErrNotSignedIn
	}

	identity, ok := a.directory.Get(sess.AccountID)
	if !ok {
		_ = a.sessions.Delete(ctx, sessionID)
		return nil, ErrNotSignedIn
	}

	if err := a.touch(ctx, *sess); err != nil {
		return nil, err
	}
	return &identity, nil
}

// touch slides the session expiry forward once less than half of
// SessionTTL remains, so an active user stays signed in.
func (a *App) touch(ctx context.Context, sess session.Session) error {
	now := a.now().UTC()
	if sess.ExpiresAt.Sub(now) >= a.cfg.SessionTTL/2 {
		return nil
	}

	sess.ExpiresAt = now.Add(a.cfg.SessionTTL)
	err := a.sessions.Update(ctx, sess)
	if errors.Is(err, session.ErrSessionNotFound) {
		return ErrNotSignedIn
	}
	if err != nil {
		return err
	}

	logger.Debug("session extended", map[string]any{
		"session_id": sess.SessionID,
		"expires_at": sess.ExpiresAt,
	})
	return nil
}

func (a *App) Logout(ctx context.Context, sessionID string) error {
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	logger.Info("signed out", map[string]any{"session_id": sessionID})
	return nil
}

func (a *App) Shutdown() error {
	return a.infra.Close()
}

func (a *App) startSession(ctx context.Context, identity *auth.Identity) (*session.Session, error) {
	id, err := session.GenerateID()
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	sess := session.Session{
		SessionID: id,
		AccountID: identity.AccountID,
		Provider:  identity.Provider,
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.SessionTTL),
	}
	if err := a.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	logger.Info("signed in", map[string]any{
		"account_id": identity.AccountID,
		"provider":   identity.Provider,
	})
	return &sess, nil
}
