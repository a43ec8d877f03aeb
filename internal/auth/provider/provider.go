package provider

import (
	"context"
	"net/http"

	"collab-auth/internal/auth"

	"golang.org/x/oauth2"
)

// OAuthProvider defines the contract every external auth provider
// must implement. Implementations return identity facts only and
// must not perform user creation, linking, or session management.
type OAuthProvider interface {
	// Name returns the provider identifier (e.g. "github", "oidc").
	Name() string

	// AuthCodeURL returns the OAuth authorization URL.
	// State and the PKCE verifier are provided by the caller.
	AuthCodeURL(state string, verifier string) string

	// Exchange trades the authorization code for an access token.
	Exchange(
		ctx context.Context,
		code string,
		verifier string,
	) (*oauth2.Token, error)

	// FetchProfile reads the normalized profile of the token owner.
	FetchProfile(
		ctx context.Context,
		token *oauth2.Token,
	) (*auth.Profile, error)
}

// Config is what a provider factory needs to build a provider. Empty
// endpoint URLs fall back to the provider's public defaults.
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// OIDC discovery
	Issuer string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
}

// Client returns the HTTP client provider calls go through. Deadlines come
// from the request context.
func (c Config) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// acceptJSON asks token endpoints for a JSON body instead of a form.
type acceptJSON struct {
	base http.RoundTripper
}

func (t acceptJSON) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

// TokenClient wraps client so token requests negotiate JSON responses.
func TokenClient(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = acceptJSON{base: base}
	return &wrapped
}
