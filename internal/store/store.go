package store

import (
	"context"

	"collab-auth/internal/auth"
)

// IdentityStore persists the full set of identities keyed by account id.
// SaveAll never deletes records; removal is an administrative concern.
type IdentityStore interface {
	LoadAll(ctx context.Context) ([]auth.Identity, error)
	SaveAll(ctx context.Context, identities []auth.Identity) error
}
