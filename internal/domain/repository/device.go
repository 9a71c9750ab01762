package repository

import (
	"context"
	"time"
)

// DeviceCodeStatus is the lifecycle state of a device authorization.
type DeviceCodeStatus string

const (
	// DeviceCodePending means no human has decided yet.
	DeviceCodePending DeviceCodeStatus = "pending"
	// DeviceCodeApproved is terminal; the subject id is bound.
	DeviceCodeApproved DeviceCodeStatus = "approved"
	// DeviceCodeDenied is terminal.
	DeviceCodeDenied DeviceCodeStatus = "denied"
	// DeviceCodeExpired is terminal and derived: it is never stored, only
	// computed from the wall clock (see StatusAt). The sweep deletes rows.
	DeviceCodeExpired DeviceCodeStatus = "expired"
)

// DeviceCode tracks one device authorization request. The polling secret is
// persisted only as a keyed digest; UserCode is the short human-entry code.
type DeviceCode struct {
	ID             string
	DeviceCodeHash string
	UserCode       string
	Status         DeviceCodeStatus
	SubjectID      *string
	ClientID       string
	ClientName     string
	Scopes         []string
	IP             string
	UserAgent      string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastPolledAt   *time.Time
	ConsumedAt     *time.Time
}

// StatusAt resolves the effective status at the given instant. A pending code
// past its expiry reads as expired without any row update.
func (d *DeviceCode) StatusAt(now time.Time) DeviceCodeStatus {
	if d.Status == DeviceCodePending && !now.Before(d.ExpiresAt) {
		return DeviceCodeExpired
	}
	return d.Status
}

// Consumed reports whether the approved code already produced tokens.
func (d *DeviceCode) Consumed() bool {
	return d.ConsumedAt != nil
}

// CreateDeviceCodeInput contains the data to persist a new device code.
type CreateDeviceCodeInput struct {
	DeviceCodeHash string
	UserCode       string
	ClientID       string
	ClientName     string
	Scopes         []string
	IP             string
	UserAgent      string
	TTL            time.Duration
}

// DeviceCodeRepository defines operations over device authorizations.
// Every state transition is conditional so concurrent callers cannot both
// succeed; the loser sees ErrConflict.
type DeviceCodeRepository interface {
	// Create persists a pending code and returns its id. Returns
	// ErrConflict when the user code collides with a live pending code;
	// callers regenerate and retry.
	Create(ctx context.Context, input CreateDeviceCodeInput) (string, error)

	// GetByDeviceCodeHash looks up by the polling secret's digest.
	GetByDeviceCodeHash(ctx context.Context, hash string) (*DeviceCode, error)

	// GetByUserCode resolves a human-entered code, preferring a pending
	// row and otherwise returning the most recent match, so callers can
	// tell "never existed" from "already decided".
	GetByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)

	// Approve transitions pending→approved and binds the subject.
	// Conditional on the row still being pending and unexpired at now;
	// otherwise ErrConflict.
	Approve(ctx context.Context, id, subjectID string, now time.Time) error

	// Deny transitions pending→denied under the same condition as Approve.
	Deny(ctx context.Context, id string, now time.Time) error

	// Consume marks an approved code as redeemed, conditional on it not
	// having been consumed before. Exactly one concurrent caller wins;
	// the rest get ErrConflict.
	Consume(ctx context.Context, id string, now time.Time) error

	// MarkPolled records a poll at now, conditional on the previous poll
	// being at least minInterval ago. Returns false (and no update) when
	// the client polls too fast. Only touches that code's row.
	MarkPolled(ctx context.Context, id string, now time.Time, minInterval time.Duration) (bool, error)

	// DeleteExpired physically removes rows whose expiry has passed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
