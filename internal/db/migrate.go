package db

import (
	"context"
	"database/sql"
)

const identityMigration = `
CREATE TABLE IF NOT EXISTS identities (
    account_id text PRIMARY KEY,
    login text NOT NULL DEFAULT '',
    display_name text NOT NULL DEFAULT '',
    email text NOT NULL DEFAULT '',
    avatar_url text NOT NULL DEFAULT '',
    provider text NOT NULL,
    provider_name text NOT NULL DEFAULT '',
    provider_user_id text NOT NULL DEFAULT '',
    password_digest text NOT NULL DEFAULT '',
    hash_version text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT NOW(),
    updated_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS identities_provider_unique
ON identities (provider_name, provider_user_id)
WHERE provider = 'external';
`

func RunIdentityMigration(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, identityMigration)
	return err
}
