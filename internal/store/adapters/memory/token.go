package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type tokenRepo struct{ c *Connection }

func cloneToken(t *repository.RefreshToken) *repository.RefreshToken {
	cp := *t
	if t.RotatedFrom != nil {
		s := *t.RotatedFrom
		cp.RotatedFrom = &s
	}
	if t.RevokedAt != nil {
		ts := *t.RevokedAt
		cp.RevokedAt = &ts
	}
	return &cp
}

// insertLocked asume que el caller tiene el lock de escritura.
func (r *tokenRepo) insertLocked(input repository.CreateRefreshTokenInput) string {
	now := time.Now()
	t := &repository.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		TokenHash:   input.TokenHash,
		IssuedAt:    now,
		ExpiresAt:   now.Add(input.TTL),
		RotatedFrom: input.RotatedFrom,
	}
	r.c.tokens[t.ID] = t
	r.c.tokensByHash[t.TokenHash] = t.ID
	return t.ID
}

func (r *tokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.insertLocked(input), nil
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	id, ok := r.c.tokensByHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneToken(r.c.tokens[id]), nil
}

// Rotate verifica y aplica bajo el mismo lock: revoca el token actual e
// inserta el sucesor como unidad. Si el actual ya estaba revocado, retorna
// ErrConflict sin tocar nada.
func (r *tokenRepo) Rotate(ctx context.Context, currentID string, successor repository.CreateRefreshTokenInput) (string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	current, ok := r.c.tokens[currentID]
	if !ok {
		return "", repository.ErrConflict
	}
	if current.RevokedAt != nil {
		return "", repository.ErrConflict
	}

	now := time.Now()
	current.RevokedAt = &now
	return r.insertLocked(successor), nil
}

func (r *tokenRepo) Revoke(ctx context.Context, tokenID string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	t, ok := r.c.tokens[tokenID]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	now := time.Now()
	n := 0
	for _, t := range r.c.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	n := 0
	for id, t := range r.c.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.c.tokens, id)
			delete(r.c.tokensByHash, t.TokenHash)
			n++
		}
	}
	return n, nil
}
