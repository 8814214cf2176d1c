package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gsalazar/workchat/internal/domain"
)

// UserRepository is the Postgres user directory. Every successful login
// upserts the identity here, keyed by the OAuth subject.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureSchema creates the users table if it does not exist yet.
func (r *UserRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			subject      TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			email        TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes a user record. Identities without an OAuth
// subject (pre-subject records) are keyed by email instead.
func (r *UserRepository) Upsert(ctx context.Context, user domain.Identity) error {
	key := user.Subject
	if key == "" {
		key = user.Email
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO users (subject, name, email, display_name, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (subject) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    updated_at = now()`,
		key, user.Name, user.Email, user.DisplayName)
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", user.Email, err)
	}
	return nil
}

// GetBySubject returns the stored identity for an OAuth subject.
func (r *UserRepository) GetBySubject(ctx context.Context, subject string) (domain.Identity, error) {
	var user domain.Identity
	err := r.db.Pool.QueryRow(ctx, `
		SELECT subject, name, email, display_name
		FROM users
		WHERE subject = $1`, subject).
		Scan(&user.Subject, &user.Name, &user.Email, &user.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("get user %q: %w", subject, err)
	}
	return user, nil
}
