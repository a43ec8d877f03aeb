package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func issuer(t *testing.T, userinfoStatus int) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"userinfo_endpoint":      srv.URL + "/userinfo",
			"jwks_uri":               srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		if userinfoStatus != 0 {
			w.WriteHeader(userinfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":                "user-7",
			"email":              "mona@example.com",
			"email_verified":     true,
			"name":               "Mona",
			"preferred_username": "mona",
			"picture":            "https://img.example.com/mona.png",
		})
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()

	p, err := New(context.Background(), provider.Config{
		Name:         "keycloak",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8000/callback",
		Issuer:       srv.URL,
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return p
}

func TestDiscoveryAndAuthCodeURL(t *testing.T) {
	srv := issuer(t, 0)
	p := newProvider(t, srv)
	assert.Equal(t, "keycloak", p.Name())

	u, err := url.Parse(p.AuthCodeURL("st", oauth2.GenerateVerifier()))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "openid profile email", u.Query().Get("scope"))
	assert.Equal(t, "st", u.Query().Get("state"))
}

func TestExchangeAndUserInfo(t *testing.T) {
	p := newProvider(t, issuer(t, 0))
	ctx := context.Background()

	token, err := p.Exchange(ctx, "code", oauth2.GenerateVerifier())
	require.NoError(t, err)

	profile, err := p.FetchProfile(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, &auth.Profile{
		Provider:       "keycloak",
		ProviderUserID: "user-7",
		Login:          "mona",
		Name:           "Mona",
		Email:          "mona@example.com",
		AvatarURL:      "https://img.example.com/mona.png",
	}, profile)
}

func TestUserInfoFailure(t *testing.T) {
	p := newProvider(t, issuer(t, http.StatusUnauthorized))

	_, err := p.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "at-123", TokenType: "Bearer"})
	require.True(t, auth.IsCode(err, auth.TextCodeProfileFetch))
}

func TestNewRequiresIssuer(t *testing.T) {
	_, err := New(context.Background(), provider.Config{ClientID: "id", ClientSecret: "secret"})
	require.True(t, auth.IsCode(err, auth.TextCodeConfiguration))
}
