package resolver

import (
	"context"
	"errors"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/logger"
)

// Directory is the subset of the identity directory the resolver needs.
type Directory interface {
	Get(accountID string) (auth.Identity, bool)
	FindByProvider(providerName, providerUserID string) (auth.Identity, bool)
	Create(ctx context.Context, identity auth.Identity) error
	Update(ctx context.Context, identity auth.Identity) error
}

// DirectoryResolver links provider profiles to identities in the directory.
type DirectoryResolver struct {
	dir Directory
	now func() time.Time
}

func NewDirectoryResolver(dir Directory) *DirectoryResolver {
	return &DirectoryResolver{dir: dir, now: time.Now}
}

// Reconcile returns the identity for profile, creating it on first login.
// Profile facts from a later login overwrite the stored ones; nothing is
// written when they are unchanged.
func (r *DirectoryResolver) Reconcile(
	ctx context.Context,
	profile *auth.Profile,
) (*auth.Identity, error) {

	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.ProviderUserID == "" {
		return nil, auth.ProfileFetchError(profile.Provider, "profile has no user id", nil)
	}

	now := r.now().UTC()

	// 1. Known provider account: refresh profile facts
	if existing, ok := r.dir.FindByProvider(profile.Provider, profile.ProviderUserID); ok {
		updated := applyProfile(existing, profile)
		if updated == existing {
			return &existing, nil
		}
		updated.UpdatedAt = now
		if err := r.dir.Update(ctx, updated); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	// 2. Account id already held by someone else
	if _, taken := r.dir.Get(profile.ProviderUserID); taken {
		return nil, auth.DuplicateAccountError(profile.ProviderUserID)
	}

	// 3. First login: create the identity
	identity := applyProfile(auth.Identity{
		AccountID:      profile.ProviderUserID,
		Provider:       auth.ProviderExternal,
		ProviderName:   profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, profile)

	if err := r.dir.Create(ctx, identity); err != nil {
		return nil, err
	}

	logger.Info("identity created", map[string]any{
		"account_id": identity.AccountID,
		"provider":   identity.ProviderName,
	})
	return &identity, nil
}

func applyProfile(identity auth.Identity, profile *auth.Profile) auth.Identity {
	identity.Login = profile.Login
	identity.DisplayName = profile.Name
	if identity.DisplayName == "" {
		identity.DisplayName = profile.Login
	}
	identity.Email = profile.Email
	identity.AvatarURL = profile.AvatarURL
	return identity
}
