package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edunirix/portal/internal/platform/db"
	"github.com/edunirix/portal/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePassword(ctx context.Context, id int64, hash string) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, is_active, must_change_password,
	is_first_login, profile, last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.IsActive, &a.MustChangePassword,
		&a.IsFirstLogin, &a.Profile, &a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByEmail fetches an account by its case-folded email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE lower(email) = $1`, email)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("auth: find by email: %w", err)
	}
	return a, nil
}

// FindByID fetches an account by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("auth: find by id: %w", err)
	}
	return a, nil
}

// TouchLogin stamps the last successful login.
func (r *PGRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("auth: touch login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new hash and clears both password-change flags.
func (r *PGRepository) UpdatePassword(ctx context.Context, id int64, hash string) (*Account, error) {
	var updated *Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `UPDATE users
			SET password_hash = $2, must_change_password = FALSE, is_first_login = FALSE, updated_at = NOW()
			WHERE id = $1
			RETURNING `+accountColumns, id, hash)
		a, err := scanAccount(row)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: update password: %w", err)
	}
	return updated, nil
}

var _ Repository = (*PGRepository)(nil)
