package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// ─── UserRepository ───

type userRepo struct{ pool *pgxpool.Pool }

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	const query = `
		SELECT id, email, COALESCE(name, ''), disabled_at, created_at
		FROM app_user WHERE id = $1
	`
	var u repository.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.DisabledAt, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user by id: %w", err)
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	const query = `
		SELECT id, email, COALESCE(name, ''), disabled_at, created_at
		FROM app_user WHERE lower(email) = lower($1)
	`
	var u repository.User
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.DisabledAt, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get user by email: %w", err)
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (string, error) {
	const query = `
		INSERT INTO app_user (email, name, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id
	`
	var id string
	err := r.pool.QueryRow(ctx, query, input.Email, nullIfEmpty(input.Name)).Scan(&id)
	if isUniqueViolation(err) {
		return "", repository.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("pg: create user: %w", err)
	}
	return id, nil
}

func (r *userRepo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	var query string
	if disabled {
		query = `UPDATE app_user SET disabled_at = NOW() WHERE id = $1 AND disabled_at IS NULL`
	} else {
		query = `UPDATE app_user SET disabled_at = NULL WHERE id = $1`
	}
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("pg: set disabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// O el usuario no existe, o ya estaba en el estado pedido.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// nullIfEmpty returns nil if the string is empty, otherwise returns the string pointer.
// Useful for inserting optional string fields into PostgreSQL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
