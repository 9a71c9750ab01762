package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// ─── TokenRepository ───

type tokenRepo struct{ pool *pgxpool.Pool }

const insertToken = `
	INSERT INTO refresh_token (user_id, token_hash, issued_at, expires_at, rotated_from)
	VALUES ($1, $2, NOW(), NOW() + $3::interval, $4)
	RETURNING id
`

func (r *tokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	ttl := fmt.Sprintf("%d seconds", int64(input.TTL.Seconds()))
	var id string
	err := r.pool.QueryRow(ctx, insertToken,
		input.UserID, input.TokenHash, ttl, input.RotatedFrom,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("pg: create refresh token: %w", err)
	}
	return id, nil
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	const query = `
		SELECT id, user_id, token_hash, issued_at, expires_at, rotated_from, revoked_at
		FROM refresh_token WHERE token_hash = $1
	`
	var token repository.RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.IssuedAt, &token.ExpiresAt, &token.RotatedFrom, &token.RevokedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get token by hash: %w", err)
	}
	return &token, nil
}

// Rotate revoca el token actual e inserta el sucesor en una sola transacción.
// El UPDATE es condicional sobre revoked_at IS NULL: si otra rotación ya ganó,
// RowsAffected es 0 y la transacción se aborta sin persistir nada.
func (r *tokenRepo) Rotate(ctx context.Context, currentID string, successor repository.CreateRefreshTokenInput) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("pg: begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE refresh_token SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		currentID,
	)
	if err != nil {
		return "", fmt.Errorf("pg: revoke current: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", repository.ErrConflict
	}

	ttl := fmt.Sprintf("%d seconds", int64(successor.TTL.Seconds()))
	var id string
	err = tx.QueryRow(ctx, insertToken,
		successor.UserID, successor.TokenHash, ttl, successor.RotatedFrom,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("pg: insert successor: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("pg: commit rotate: %w", err)
	}
	return id, nil
}

func (r *tokenRepo) Revoke(ctx context.Context, tokenID string) error {
	const query = `UPDATE refresh_token SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	if _, err := r.pool.Exec(ctx, query, tokenID); err != nil {
		return fmt.Errorf("pg: revoke token: %w", err)
	}
	return nil
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE refresh_token SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("pg: revoke all by user: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired borra solo filas pasadas de expires_at. Las filas revocadas
// pero no expiradas se conservan: son las que detectan reuso de un token
// robado durante toda su vida natural.
func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM refresh_token WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
