package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsersTable, downCreateUsersTable)
}

func upCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	query := `
	CREATE TABLE users (
	  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	  first_name TEXT NOT NULL,
	  last_name TEXT NOT NULL,
	  email TEXT NOT NULL UNIQUE,
	  password_hash TEXT NOT NULL,
	  role TEXT NOT NULL DEFAULT 'student'
	    CHECK (role IN ('student', 'institution', 'company', 'admin')),
	  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	  password_reset_token_hash TEXT,
	  password_reset_expires_at TIMESTAMP WITH TIME ZONE,
	  CONSTRAINT users_reset_fields_paired
	    CHECK ((password_reset_token_hash IS NULL) = (password_reset_expires_at IS NULL))
	);

	CREATE INDEX idx_users_password_reset_token_hash ON users (password_reset_token_hash);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS users;`)
	return err
}
