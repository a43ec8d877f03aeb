package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/auth/provider"
	"collab-auth/internal/logger"

	"golang.org/x/oauth2"
)

const (
	providerName = "github"

	defaultAuthURL   = "https://github.com/login/oauth/authorize"
	defaultTokenURL  = "https://github.com/login/oauth/access_token"
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"

	maxBodyBytes = 1 << 20

	// caps the /user/emails call inside the profile step
	defaultEmailsTimeout = 10 * time.Second
)

// Provider implements the GitHub OAuth app flow. It returns identity
// facts only; no user/session decisions are made here.
type Provider struct {
	oauthConfig *oauth2.Config
	client      *http.Client
	tokenClient *http.Client
	userURL     string
	emailsURL   string

	emailsTimeout time.Duration
}

func New(
	_ context.Context,
	cfg provider.Config,
) (*Provider, error) {

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, auth.ConfigurationError(missing(cfg)...)
	}

	client := cfg.Client()

	return &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.AuthURL, defaultAuthURL),
				TokenURL:  orDefault(cfg.TokenURL, defaultTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client:      client,
		tokenClient: provider.TokenClient(client),
		userURL:     orDefault(cfg.UserURL, defaultUserURL),
		emailsURL:   orDefault(cfg.EmailsURL, defaultEmailsURL),

		emailsTimeout: defaultEmailsTimeout,
	}, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL builds the authorization URL with an S256 PKCE challenge.
func (p *Provider) AuthCodeURL(state string, verifier string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *Provider) Exchange(
	ctx context.Context,
	code string,
	verifier string,
) (*oauth2.Token, error) {

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.tokenClient)

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		logger.Error("github token exchange failed", map[string]any{
			"error": err.Error(),
		})
		return nil, provider.ExchangeError(providerName, err)
	}
	return token, nil
}

type userResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile reads /user and, best effort, /user/emails. A failed or
// slow emails call never fails the login.
func (p *Provider) FetchProfile(
	ctx context.Context,
	token *oauth2.Token,
) (*auth.Profile, error) {

	var user userResponse
	if err := p.get(ctx, p.userURL, token, &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, auth.ProfileFetchError(providerName, "response has no user id", nil)
	}

	email := pickEmail(p.fetchEmails(ctx, token))
	if email == "" {
		email = user.Email
	}

	logger.Info("github profile fetched", map[string]any{
		"login":         user.Login,
		"email_present": email != "",
	})

	return &auth.Profile{
		Provider:       providerName,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Login:          user.Login,
		Name:           user.Name,
		Email:          email,
		AvatarURL:      user.AvatarURL,
	}, nil
}

// fetchEmails runs under its own deadline so a stalled /user/emails
// cannot use up the rest of the caller's budget.
func (p *Provider) fetchEmails(ctx context.Context, token *oauth2.Token) []emailResponse {
	ctx, cancel := context.WithTimeout(ctx, p.emailsTimeout)
	defer cancel()

	var emails []emailResponse
	if err := p.get(ctx, p.emailsURL, token, &emails); err != nil {
		logger.Warn("github emails unavailable", map[string]any{
			"error":      err.Error(),
			"error_code": auth.TextCode(err),
		})
		return nil
	}
	return emails
}

func (p *Provider) get(ctx context.Context, url string, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return auth.ProfileFetchError(providerName, err.Error(), err)
	}
	req.Header.Set("Authorization", "token "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return provider.ProfileError(providerName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return provider.ProfileError(providerName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return auth.ProfileFetchError(providerName,
			fmt.Sprintf("%d %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return auth.ProfileFetchError(providerName, "malformed response", err)
	}
	return nil
}

// pickEmail prefers the primary address, then the first listed.
func pickEmail(emails []emailResponse) string {
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}

func missing(cfg provider.Config) []string {
	var out []string
	if cfg.ClientID == "" {
		out = append(out, "client_id")
	}
	if cfg.ClientSecret == "" {
		out = append(out, "client_secret")
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var _ provider.OAuthProvider = (*Provider)(nil)
