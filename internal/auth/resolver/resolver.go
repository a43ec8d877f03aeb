package resolver

import (
	"context"

	"collab-auth/internal/auth"
)

// Resolver determines which local identity an external profile belongs to.
// It is the ONLY place where profile-to-identity mapping logic lives.
type Resolver interface {
	Reconcile(
		ctx context.Context,
		profile *auth.Profile,
	) (*auth.Identity, error)
}
