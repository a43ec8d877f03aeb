package credentials

import (
	"context"
	"strings"
	"sync"
	"time"

	"collab-auth/internal/auth"
	"collab-auth/internal/logger"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const minPasswordLength = 8

// Directory is the subset of the identity directory the service needs.
type Directory interface {
	Get(accountID string) (auth.Identity, bool)
	Create(ctx context.Context, identity auth.Identity) error
	Update(ctx context.Context, identity auth.Identity) error
}

type RegisterInput struct {
	AccountID   string
	Password    string
	DisplayName string
	Email       string
}

func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccountID, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&r.DisplayName, validation.Length(0, 200)),
		validation.Field(&r.Email, is.Email),
	)
}

// Service owns local password accounts.
type Service struct {
	dir    Directory
	hasher *Hasher
	now    func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(dir Directory, hasher *Hasher) *Service {
	return &Service{dir: dir, hasher: hasher, now: time.Now}
}

// Register creates a local account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*auth.Identity, error) {
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, auth.ValidationError(err)
	}

	if _, exists := s.dir.Get(in.AccountID); exists {
		return nil, auth.DuplicateAccountError(in.AccountID)
	}

	digest, version, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.AccountID
	}

	now := s.now().UTC()
	identity := auth.Identity{
		AccountID:      in.AccountID,
		DisplayName:    displayName,
		Email:          in.Email,
		Provider:       auth.ProviderLocal,
		CreatedAt:      now,
		UpdatedAt:      now,
		PasswordDigest: digest,
		HashVersion:    version,
	}
	if err := s.dir.Create(ctx, identity); err != nil {
		return nil, err
	}

	logger.Info("local account registered", map[string]any{
		"account_id": identity.AccountID,
	})
	return &identity, nil
}

// Login checks a password. Every failure returns the same error so the
// caller cannot tell an unknown account from a wrong password.
func (s *Service) Login(ctx context.Context, accountID, password string) (*auth.Identity, error) {
	identity, ok := s.dir.Get(strings.TrimSpace(accountID))
	if !ok || !identity.IsLocal() {
		s.burn(password)
		return nil, auth.InvalidCredentialsError()
	}

	match, err := s.hasher.Verify(identity.PasswordDigest, identity.HashVersion, password)
	if err != nil {
		logger.Warn("stored password digest unreadable", map[string]any{
			"account_id": identity.AccountID,
			"error":      err.Error(),
		})
		return nil, auth.InvalidCredentialsError()
	}
	if !match {
		return nil, auth.InvalidCredentialsError()
	}

	if s.hasher.NeedsRehash(identity.PasswordDigest, identity.HashVersion) {
		s.rehash(ctx, identity, password)
		identity, _ = s.dir.Get(identity.AccountID)
	}
	return &identity, nil
}

func (s *Service) rehash(ctx context.Context, identity auth.Identity, password string) {
	digest, version, err := s.hasher.Hash(password)
	if err != nil {
		logger.Warn("password rehash failed", map[string]any{"account_id": identity.AccountID, "error": err.Error()})
		return
	}

	identity.PasswordDigest = digest
	identity.HashVersion = version
	identity.UpdatedAt = s.now().UTC()
	if err := s.dir.Update(ctx, identity); err != nil {
		logger.Warn("password rehash not saved", map[string]any{"account_id": identity.AccountID, "error": err.Error()})
		return
	}

	logger.Info("legacy password digest upgraded", map[string]any{
		"account_id": identity.AccountID,
		"version":    version,
	})
}

// burn spends one verification on a throwaway digest so unknown accounts
// take as long as wrong passwords.
func (s *Service) burn(password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _, _ = s.hasher.Hash("collab-auth-placeholder")
	})
	_, _ = s.hasher.Verify(s.dummyDigest, HashVersionArgon2id, password)
}
