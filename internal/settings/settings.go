package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const (
	DefaultProvider    = "github"
	DefaultRedirectURI = "http://localhost:8000/callback"
	DefaultScope       = "read:user user:email"
)

const (
	keyProvider     = "provider"
	keyClientID     = "client_id"
	keyClientSecret = "client_secret"
	keyRedirectURI  = "redirect_uri"
	keyScope        = "scope"
	keyIssuer       = "issuer"
)

// OAuth is a snapshot of the provider settings.
type OAuth struct {
	Provider     string `mapstructure:"provider"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	Scope        string `mapstructure:"scope"`
	Issuer       string `mapstructure:"issuer"`
}

// Configured reports whether a login can be attempted.
func (o OAuth) Configured() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// Missing names the required fields that are empty.
func (o OAuth) Missing() []string {
	var out []string
	if o.ClientID == "" {
		out = append(out, keyClientID)
	}
	if o.ClientSecret == "" {
		out = append(out, keyClientSecret)
	}
	return out
}

func (o OAuth) Scopes() []string {
	return strings.Fields(strings.ReplaceAll(o.Scope, ",", " "))
}

// Store persists OAuth settings in a JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
	v    *viper.Viper
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault(keyProvider, DefaultProvider)
	v.SetDefault(keyClientID, "")
	v.SetDefault(keyClientSecret, "")
	v.SetDefault(keyRedirectURI, DefaultRedirectURI)
	v.SetDefault(keyScope, DefaultScope)
	v.SetDefault(keyIssuer, "")

	if err := v.ReadInConfig(); err != nil && !notFound(err) {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	return &Store{path: path, v: v}, nil
}

func (s *Store) Path() string {
	return s.path
}

// OAuth returns the current settings.
func (s *Store) OAuth() OAuth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return OAuth{
		Provider:     s.v.GetString(keyProvider),
		ClientID:     s.v.GetString(keyClientID),
		ClientSecret: s.v.GetString(keyClientSecret),
		RedirectURI:  s.v.GetString(keyRedirectURI),
		Scope:        s.v.GetString(keyScope),
		Issuer:       s.v.GetString(keyIssuer),
	}
}

// SetOAuth replaces every setting. Empty provider, redirect uri, or scope
// fall back to the defaults.
func (s *Store) SetOAuth(o OAuth) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(keyProvider, orDefault(o.Provider, DefaultProvider))
	s.v.Set(keyClientID, strings.TrimSpace(o.ClientID))
	s.v.Set(keyClientSecret, strings.TrimSpace(o.ClientSecret))
	s.v.Set(keyRedirectURI, orDefault(o.RedirectURI, DefaultRedirectURI))
	s.v.Set(keyScope, orDefault(o.Scope, DefaultScope))
	s.v.Set(keyIssuer, strings.TrimSpace(o.Issuer))
}

func (s *Store) SetClientID(id string) {
	s.set(keyClientID, strings.TrimSpace(id))
}

func (s *Store) SetClientSecret(secret string) {
	s.set(keyClientSecret, strings.TrimSpace(secret))
}

func (s *Store) SetRedirectURI(uri string) {
	s.set(keyRedirectURI, orDefault(uri, DefaultRedirectURI))
}

func (s *Store) set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

// Save writes the settings file. It holds the client secret, so it is
// readable by the owner only.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return os.Chmod(s.path, 0o600)
}

func notFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
