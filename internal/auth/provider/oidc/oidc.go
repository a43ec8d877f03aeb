package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/provider"
	"collab-auth/internal/logger"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const defaultName = "oidc"

// Provider implements OAuth + OIDC authentication against any issuer that
// publishes a discovery document.
// It returns identity facts only; no user/session decisions are made here.
type Provider struct {
	name        string
	oauthConfig *oauth2.Config
	oidc        *gooidc.Provider
	verifier    *gooidc.IDTokenVerifier
	client      *http.Client
}

// New initializes the provider using discovery against cfg.Issuer.
func New(
	ctx context.Context,
	cfg provider.Config,
) (*Provider, error) {

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, auth.ConfigurationError("client_id", "client_secret")
	}
	if cfg.Issuer == "" {
		return nil, auth.ConfigurationError("issuer")
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}

	client := cfg.Client()

	discovered, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", name, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &Provider{
		name: name,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     discovered.Endpoint(),
			Scopes:       scopes,
		},
		oidc:     discovered,
		verifier: discovered.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:   client,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL builds the OAuth authorization URL with PKCE parameters.
func (p *Provider) AuthCodeURL(state string, verifier string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
	)
}

func (p *Provider) Exchange(
	ctx context.Context,
	code string,
	verifier string,
) (*oauth2.Token, error) {

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		logger.Error("oidc token exchange failed", map[string]any{
			"provider": p.name,
			"error":    err.Error(),
		})
		return nil, provider.ExchangeError(p.name, err)
	}
	return token, nil
}

type claims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
}

// FetchProfile verifies the id_token when the issuer returned one, then
// reads the userinfo endpoint.
func (p *Provider) FetchProfile(
	ctx context.Context,
	token *oauth2.Token,
) (*auth.Profile, error) {

	ctx = gooidc.ClientContext(ctx, p.client)

	var subject string
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			logger.Error("oidc id_token verification failed", map[string]any{
				"provider": p.name,
				"error":    err.Error(),
			})
			return nil, auth.ProfileFetchError(p.name, "id_token verification failed", err)
		}
		subject = idToken.Subject
	}

	info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, provider.ProfileError(p.name, err)
	}

	var c claims
	if err := info.Claims(&c); err != nil {
		return nil, auth.ProfileFetchError(p.name, "userinfo claims parse failed", err)
	}

	if c.Subject == "" {
		return nil, auth.ProfileFetchError(p.name, "userinfo missing subject", nil)
	}
	if subject != "" && subject != c.Subject {
		return nil, auth.ProfileFetchError(p.name, "userinfo subject does not match id_token",
			errors.New("subject mismatch"))
	}

	logger.Info("oidc profile fetched", map[string]any{
		"provider":       p.name,
		"email_present":  c.Email != "",
		"email_verified": c.EmailVerified,
	})

	return &auth.Profile{
		Provider:       p.name,
		ProviderUserID: c.Subject,
		Login:          c.PreferredUsername,
		Name:           c.Name,
		Email:          c.Email,
		AvatarURL:      c.Picture,
	}, nil
}

var _ provider.OAuthProvider = (*Provider)(nil)
