package repository

import (
	"context"
	"time"
)

// RefreshToken is one link in a subject's rotation chain. The raw secret is
// never stored; TokenHash is a keyed digest of it.
type RefreshToken struct {
	ID          string
	UserID      string
	TokenHash   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedFrom *string
	RevokedAt   *time.Time
}

// CreateRefreshTokenInput contains the data to persist a new refresh token.
type CreateRefreshTokenInput struct {
	UserID      string
	TokenHash   string
	TTL         time.Duration
	RotatedFrom *string
}

// TokenRepository defines operations over refresh tokens.
type TokenRepository interface {
	// Create persists a new token and returns its id.
	Create(ctx context.Context, input CreateRefreshTokenInput) (string, error)

	// GetByHash looks a token up by its digest. Returns ErrNotFound if absent.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Rotate revokes the token identified by currentID and inserts its
	// successor as one atomic unit. The revocation is conditional on the
	// current token being unrevoked: if another rotation already won,
	// Rotate returns ErrConflict and persists nothing. Returns the id of
	// the successor.
	Rotate(ctx context.Context, currentID string, successor CreateRefreshTokenInput) (string, error)

	// Revoke marks a single token revoked. Revoking an already-revoked
	// token is a no-op, not an error.
	Revoke(ctx context.Context, tokenID string) error

	// RevokeAllByUser revokes every live token of a subject and returns
	// how many were affected.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired physically removes rows past their natural expiry as
	// of now. Revoked but unexpired rows stay: they are what detects reuse
	// of a stolen token. Correctness never depends on this sweep.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
