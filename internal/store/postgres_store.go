package store

import (
	"context"
	"fmt"

	"collab-auth/internal/auth"
	"collab-auth/internal/db"
)

// PostgresStore keeps identities in the hosted postgres database.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) LoadAll(ctx context.Context) ([]auth.Identity, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT account_id, login, display_name, email, avatar_url,
		       provider, provider_name, provider_user_id,
		       password_digest, hash_version, created_at, updated_at
		FROM identities
		ORDER BY created_at, account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query identities: %w", err)
	}
	defer rows.Close()

	var out []auth.Identity
	for rows.Next() {
		var i auth.Identity
		if err := rows.Scan(
			&i.AccountID, &i.Login, &i.DisplayName, &i.Email, &i.AvatarURL,
			&i.Provider, &i.ProviderName, &i.ProviderUserID,
			&i.PasswordDigest, &i.HashVersion, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan identity: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate identities: %w", err)
	}
	return out, nil
}

// SaveAll upserts every identity in one transaction.
func (p *PostgresStore) SaveAll(ctx context.Context, identities []auth.Identity) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, i := range identities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO identities (
				account_id, login, display_name, email, avatar_url,
				provider, provider_name, provider_user_id,
				password_digest, hash_version, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (account_id) DO UPDATE SET
				login = EXCLUDED.login,
				display_name = EXCLUDED.display_name,
				email = EXCLUDED.email,
				avatar_url = EXCLUDED.avatar_url,
				password_digest = EXCLUDED.password_digest,
				hash_version = EXCLUDED.hash_version,
				updated_at = EXCLUDED.updated_at
		`,
			i.AccountID, i.Login, i.DisplayName, i.Email, i.AvatarURL,
			i.Provider, i.ProviderName, i.ProviderUserID,
			i.PasswordDigest, i.HashVersion, i.CreatedAt, i.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: upsert %s: %w", i.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
