package auth

import "time"

// Provider kinds an identity can be authenticated through.
const (
	ProviderLocal    = "local"
	ProviderExternal = "external"
)

// Identity is the durable local record of a person who can log in,
// either through an external provider or a local password.
// AccountID is unique across all identities.
type Identity struct {
	AccountID      string    `json:"account_id"`
	Login          string    `json:"login,omitempty"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatar_url"`
	Provider       string    `json:"provider"`                   // local or external
	ProviderName   string    `json:"provider_name,omitempty"`    // e.g. "github"
	ProviderUserID string    `json:"provider_user_id,omitempty"` // provider-scoped id
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Local accounts only.
	PasswordDigest string `json:"password_digest,omitempty"`
	HashVersion    string `json:"hash_version,omitempty"`
}

// IsLocal reports whether the identity authenticates with a password.
func (i Identity) IsLocal() bool {
	return i.Provider == ProviderLocal
}

// Profile represents a normalized identity returned by an OAuth provider.
// It contains facts only, no decisions.
type Profile struct {
	Provider       string // provider name, e.g. "github"
	ProviderUserID string // provider-scoped unique user identifier
	Login          string
	Name           string
	Email          string
	AvatarURL      string
}
