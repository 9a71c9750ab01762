package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// ─── DeviceCodeRepository ───

type deviceCodeRepo struct{ pool *pgxpool.Pool }

const selectDeviceCode = `
	SELECT id, device_code_hash, user_code, status, subject_id,
	       client_id, COALESCE(client_name, ''), scopes,
	       COALESCE(ip, ''), COALESCE(user_agent, ''),
	       expires_at, created_at, last_polled_at, consumed_at
	FROM device_code
`

func (r *deviceCodeRepo) scanOne(row pgx.Row) (*repository.DeviceCode, error) {
	var d repository.DeviceCode
	err := row.Scan(
		&d.ID, &d.DeviceCodeHash, &d.UserCode, &d.Status, &d.SubjectID,
		&d.ClientID, &d.ClientName, &d.Scopes,
		&d.IP, &d.UserAgent,
		&d.ExpiresAt, &d.CreatedAt, &d.LastPolledAt, &d.ConsumedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: scan device code: %w", err)
	}
	return &d, nil
}

func (r *deviceCodeRepo) Create(ctx context.Context, input repository.CreateDeviceCodeInput) (string, error) {
	const query = `
		INSERT INTO device_code (device_code_hash, user_code, status, client_id, client_name,
		                         scopes, ip, user_agent, expires_at, created_at)
		VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, NOW() + $8::interval, NOW())
		RETURNING id
	`
	ttl := fmt.Sprintf("%d seconds", int64(input.TTL.Seconds()))
	var id string
	err := r.pool.QueryRow(ctx, query,
		input.DeviceCodeHash, input.UserCode, input.ClientID, nullIfEmpty(input.ClientName),
		input.Scopes, nullIfEmpty(input.IP), nullIfEmpty(input.UserAgent), ttl,
	).Scan(&id)
	if isUniqueViolation(err) {
		// Colisión de user_code con otro código pending vivo (índice parcial).
		return "", repository.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("pg: create device code: %w", err)
	}
	return id, nil
}

func (r *deviceCodeRepo) GetByDeviceCodeHash(ctx context.Context, hash string) (*repository.DeviceCode, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectDeviceCode+` WHERE device_code_hash = $1`, hash))
}

// GetByUserCode prefiere la fila pending y si no hay, la más reciente, para
// que el caller distinga "nunca existió" de "ya decidido".
func (r *deviceCodeRepo) GetByUserCode(ctx context.Context, userCode string) (*repository.DeviceCode, error) {
	const order = ` WHERE user_code = $1
		ORDER BY (status = 'pending') DESC, created_at DESC
		LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, selectDeviceCode+order, userCode))
}

func (r *deviceCodeRepo) Approve(ctx context.Context, id, subjectID string, now time.Time) error {
	const query = `
		UPDATE device_code SET status = 'approved', subject_id = $2
		WHERE id = $1 AND status = 'pending' AND expires_at > $3
	`
	tag, err := r.pool.Exec(ctx, query, id, subjectID, now)
	if err != nil {
		return fmt.Errorf("pg: approve device code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *deviceCodeRepo) Deny(ctx context.Context, id string, now time.Time) error {
	const query = `
		UPDATE device_code SET status = 'denied'
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`
	tag, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("pg: deny device code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *deviceCodeRepo) Consume(ctx context.Context, id string, now time.Time) error {
	const query = `
		UPDATE device_code SET consumed_at = $2
		WHERE id = $1 AND status = 'approved' AND consumed_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("pg: consume device code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

// MarkPolled registra el poll solo si el anterior fue hace al menos
// minInterval. Retorna false sin tocar la fila cuando el cliente va
// demasiado rápido.
func (r *deviceCodeRepo) MarkPolled(ctx context.Context, id string, now time.Time, minInterval time.Duration) (bool, error) {
	const query = `
		UPDATE device_code SET last_polled_at = $2
		WHERE id = $1 AND (last_polled_at IS NULL OR last_polled_at <= $3)
	`
	tag, err := r.pool.Exec(ctx, query, id, now, now.Add(-minInterval))
	if err != nil {
		return false, fmt.Errorf("pg: mark polled: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *deviceCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM device_code WHERE expires_at < $1`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("pg: delete expired device codes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
