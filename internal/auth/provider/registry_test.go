package provider

import (
	"context"
	"testing"

	"collab-auth/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string {
	return s.name
}

func (s stubProvider) AuthCodeURL(string, string) string {
	return ""
}

func (s stubProvider) Exchange(context.Context, string, string) (*oauth2.Token, error) {
	return nil, nil
}

func (s stubProvider) FetchProfile(context.Context, *oauth2.Token) (*auth.Profile, error) {
	return nil, nil
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("github", func(_ context.Context, cfg Config) (OAuthProvider, error) {
		return stubProvider{name: cfg.Name}, nil
	}))

	p, err := r.Build(context.Background(), Config{Name: "github"})
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	_, err = r.Build(context.Background(), Config{Name: "gitlab"})
	require.Error(t, err)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	f := func(context.Context, Config) (OAuthProvider, error) { return stubProvider{}, nil }

	require.NoError(t, r.Register("oidc", f))
	require.Error(t, r.Register("oidc", f))
	assert.Equal(t, []string{"oidc"}, r.Names())
}

func TestExchangeErrorClassification(t *testing.T) {
	err := ExchangeError("github", &oauth2.RetrieveError{
		ErrorCode:        "bad_verification_code",
		ErrorDescription: "The code passed is incorrect or expired.",
	})
	require.True(t, auth.IsCode(err, auth.TextCodeTokenExchange))
	assert.Equal(t, "token exchange failed: The code passed is incorrect or expired.", auth.Message(err))

	err = ExchangeError("github", context.DeadlineExceeded)
	assert.True(t, auth.IsCode(err, auth.TextCodeNetworkTimeout))

	err = ProfileError("github", context.DeadlineExceeded)
	assert.True(t, auth.IsCode(err, auth.TextCodeNetworkTimeout))
}
