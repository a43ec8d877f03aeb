package store

import (
	"context"
	"fmt"
	"sync"

	"collab-auth/internal/auth"
)

// Directory is the in-memory view of all identities. It is loaded once at
// startup and every change is written through the IdentityStore before it
// becomes visible, so a failed write leaves no partial identity behind.
type Directory struct {
	mu         sync.RWMutex
	store      IdentityStore
	identities []auth.Identity
	byAccount  map[string]int
	byProvider map[providerKey]int
}

type providerKey struct {
	name string
	id   string
}

// OpenDirectory loads every identity from store.
func OpenDirectory(ctx context.Context, store IdentityStore) (*Directory, error) {
	identities, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	d := &Directory{store: store}
	if err := d.reindex(identities); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the identity with the given account id.
func (d *Directory) Get(accountID string) (auth.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byAccount[accountID]
	if !ok {
		return auth.Identity{}, false
	}
	return d.identities[idx], true
}

// FindByProvider returns the external identity linked to a provider account.
func (d *Directory) FindByProvider(providerName, providerUserID string) (auth.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.byProvider[providerKey{providerName, providerUserID}]
	if !ok {
		return auth.Identity{}, false
	}
	return d.identities[idx], true
}

// All returns a copy of every identity in load/creation order.
func (d *Directory) All() []auth.Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]auth.Identity, len(d.identities))
	copy(out, d.identities)
	return out
}

// Create persists a new identity. It fails with DuplicateAccountError when
// the account id is already taken.
func (d *Directory) Create(ctx context.Context, identity auth.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byAccount[identity.AccountID]; exists {
		return auth.DuplicateAccountError(identity.AccountID)
	}

	next := make([]auth.Identity, len(d.identities), len(d.identities)+1)
	copy(next, d.identities)
	next = append(next, identity)

	return d.commit(ctx, next)
}

// Update replaces an existing identity in place.
func (d *Directory) Update(ctx context.Context, identity auth.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx, ok := d.byAccount[identity.AccountID]
	if !ok {
		return fmt.Errorf("store: identity %q not found", identity.AccountID)
	}

	next := make([]auth.Identity, len(d.identities))
	copy(next, d.identities)
	next[idx] = identity

	return d.commit(ctx, next)
}

func (d *Directory) commit(ctx context.Context, next []auth.Identity) error {
	if err := d.store.SaveAll(ctx, next); err != nil {
		return fmt.Errorf("store: save identities: %w", err)
	}
	return d.reindex(next)
}

func (d *Directory) reindex(identities []auth.Identity) error {
	byAccount := make(map[string]int, len(identities))
	byProvider := make(map[providerKey]int)

	for i, identity := range identities {
		if _, dup := byAccount[identity.AccountID]; dup {
			return fmt.Errorf("store: duplicate account id %q", identity.AccountID)
		}
		byAccount[identity.AccountID] = i
		if identity.Provider == auth.ProviderExternal {
			byProvider[providerKey{identity.ProviderName, identity.ProviderUserID}] = i
		}
	}

	d.identities = identities
	d.byAccount = byAccount
	d.byProvider = byProvider
	return nil
}
