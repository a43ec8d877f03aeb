package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"collab-auth/internal/app"
	"collab-auth/internal/auth"
	"collab-auth/internal/auth/coordinator"
	"collab-auth/internal/auth/credentials"
	"collab-auth/internal/config"
	"collab-auth/internal/logger"
	"collab-auth/internal/session"

	"github.com/spf13/pflag"
)

const sessionFile = ".collab_session"

const usage = `usage: collabauth <command> [flags]

commands:
  configure   store OAuth client settings
  login       sign in through the configured OAuth provider
  register    create a local account
  signin      sign in with a local account
  whoami      show the signed-in identity
  logout      end the current session
`

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
		return 1
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			logger.Error("shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	c := &cli{app: application, cfg: cfg, out: os.Stdout, in: bufio.NewReader(os.Stdin)}

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", auth.Message(err))
		return 1
	}
	return 0
}

type cli struct {
	app *app.App
	cfg config.Config
	out io.Writer
	in  *bufio.Reader
}

func (c *cli) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "configure":
		return c.configure(args)
	case "login":
		return c.login(ctx)
	case "register":
		return c.register(ctx, args)
	case "signin":
		return c.signin(ctx, args)
	case "whoami":
		return c.whoami(ctx)
	case "logout":
		return c.logout(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

func (c *cli) configure(args []string) error {
	current := c.app.Settings().OAuth()

	flags := pflag.NewFlagSet("configure", pflag.ContinueOnError)
	provider := flags.String("provider", current.Provider, "oauth provider (github or oidc)")
	clientID := flags.String("client-id", current.ClientID, "oauth client id")
	clientSecret := flags.String("client-secret", current.ClientSecret, "oauth client secret")
	redirectURI := flags.String("redirect-uri", current.RedirectURI, "callback url registered with the provider")
	scope := flags.String("scope", current.Scope, "space separated scopes")
	issuer := flags.String("issuer", current.Issuer, "issuer url for oidc providers")
	if err := flags.Parse(args); err != nil {
		return err
	}

	updated := current
	updated.Provider = *provider
	updated.ClientID = *clientID
	updated.ClientSecret = *clientSecret
	updated.RedirectURI = *redirectURI
	updated.Scope = *scope
	updated.Issuer = *issuer

	c.app.Settings().SetOAuth(updated)
	if err := c.app.Settings().Save(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "settings saved to %s\n", c.app.Settings().Path())
	if !updated.Configured() {
		fmt.Fprintf(c.out, "still missing: %s\n", strings.Join(updated.Missing(), ", "))
	}
	return nil
}

func (c *cli) login(ctx context.Context) error {
	sess, identity, err := c.app.LoginWithProvider(ctx, func(s *coordinator.Session, status coordinator.Status) {
		switch status {
		case coordinator.StatusPending:
			fmt.Fprintf(c.out, "Opening browser for authentication...\nIf nothing opens, visit:\n  %s\n", s.AuthURL)
		case coordinator.StatusExchanging:
			fmt.Fprintln(c.out, "Exchanging code for access token...")
		case coordinator.StatusFetchingProfile:
			fmt.Fprintln(c.out, "Fetching user information...")
		}
	})
	if err != nil {
		return err
	}
	return c.welcome(sess, identity)
}

func (c *cli) register(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
	username := flags.StringP("username", "u", "", "account id")
	password := flags.StringP("password", "p", "", "password (read from stdin when empty)")
	name := flags.String("name", "", "display name")
	email := flags.String("email", "", "email address")
	if err := flags.Parse(args); err != nil {
		return err
	}

	pw, err := c.password(*password)
	if err != nil {
		return err
	}

	identity, err := c.app.Register(ctx, credentials.RegisterInput{
		AccountID:   *username,
		Password:    pw,
		DisplayName: *name,
		Email:       *email,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Account %s created. You can now sign in.\n", identity.AccountID)
	return nil
}

func (c *cli) signin(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("signin", pflag.ContinueOnError)
	username := flags.StringP("username", "u", "", "account id")
	password := flags.StringP("password", "p", "", "password (read from stdin when empty)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	pw, err := c.password(*password)
	if err != nil {
		return err
	}

	sess, identity, err := c.app.SignIn(ctx, *username, pw)
	if err != nil {
		return err
	}
	return c.welcome(sess, identity)
}

func (c *cli) whoami(ctx context.Context) error {
	identity, err := c.app.CurrentUser(ctx, c.readSession())
	if errors.Is(err, app.ErrNotSignedIn) {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s (%s)\n", identity.DisplayName, identity.AccountID)
	if identity.Email != "" {
		fmt.Fprintf(c.out, "email: %s\n", identity.Email)
	}
	via := identity.Provider
	if identity.ProviderName != "" {
		via = identity.ProviderName
	}
	fmt.Fprintf(c.out, "via: %s\n", via)
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	id := c.readSession()
	if id == "" {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	if err := c.app.Logout(ctx, id); err != nil {
		return err
	}
	_ = os.Remove(c.sessionPath())
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func (c *cli) welcome(sess *session.Session, identity *auth.Identity) error {
	if err := os.WriteFile(c.sessionPath(), []byte(sess.SessionID), 0o600); err != nil {
		return err
	}

	name := identity.DisplayName
	if name == "" {
		name = identity.AccountID
	}
	fmt.Fprintf(c.out, "Welcome, %s!\n", name)
	if !c.cfg.PersistentSessions() {
		fmt.Fprintf(c.out, "note: COLLAB_SESSION_BACKEND=%s keeps sessions in this process only; whoami and logout will not see them\n", c.cfg.SessionBackend)
	}
	return nil
}

func (c *cli) password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(c.out, "Password: ")
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) sessionPath() string {
	return filepath.Join(c.cfg.DataDir, sessionFile)
}

func (c *cli) readSession() string {
	data, err := os.ReadFile(c.sessionPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("session file unreadable", map[string]any{"error": err.Error()})
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
