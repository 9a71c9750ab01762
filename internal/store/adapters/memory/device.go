package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type deviceCodeRepo struct{ c *Connection }

func cloneDevice(d *repository.DeviceCode) *repository.DeviceCode {
	cp := *d
	if d.SubjectID != nil {
		s := *d.SubjectID
		cp.SubjectID = &s
	}
	if d.LastPolledAt != nil {
		t := *d.LastPolledAt
		cp.LastPolledAt = &t
	}
	if d.ConsumedAt != nil {
		t := *d.ConsumedAt
		cp.ConsumedAt = &t
	}
	cp.Scopes = append([]string(nil), d.Scopes...)
	return &cp
}

func (r *deviceCodeRepo) Create(ctx context.Context, input repository.CreateDeviceCodeInput) (string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	now := time.Now()
	for _, d := range r.c.devices {
		if d.UserCode == input.UserCode && d.Status == repository.DeviceCodePending && d.ExpiresAt.After(now) {
			return "", repository.ErrConflict
		}
	}

	d := &repository.DeviceCode{
		ID:             uuid.NewString(),
		DeviceCodeHash: input.DeviceCodeHash,
		UserCode:       input.UserCode,
		Status:         repository.DeviceCodePending,
		ClientID:       input.ClientID,
		ClientName:     input.ClientName,
		Scopes:         append([]string(nil), input.Scopes...),
		IP:             input.IP,
		UserAgent:      input.UserAgent,
		ExpiresAt:      now.Add(input.TTL),
		CreatedAt:      now,
	}
	r.c.devices[d.ID] = d
	r.c.devicesByHash[d.DeviceCodeHash] = d.ID
	return d.ID, nil
}

func (r *deviceCodeRepo) GetByDeviceCodeHash(ctx context.Context, hash string) (*repository.DeviceCode, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	id, ok := r.c.devicesByHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDevice(r.c.devices[id]), nil
}

func (r *deviceCodeRepo) GetByUserCode(ctx context.Context, userCode string) (*repository.DeviceCode, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	var best *repository.DeviceCode
	for _, d := range r.c.devices {
		if d.UserCode != userCode {
			continue
		}
		switch {
		case best == nil:
			best = d
		case d.Status == repository.DeviceCodePending && best.Status != repository.DeviceCodePending:
			best = d
		case (d.Status == repository.DeviceCodePending) == (best.Status == repository.DeviceCodePending) &&
			d.CreatedAt.After(best.CreatedAt):
			best = d
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return cloneDevice(best), nil
}

func (r *deviceCodeRepo) Approve(ctx context.Context, id, subjectID string, now time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	d, ok := r.c.devices[id]
	if !ok || d.Status != repository.DeviceCodePending || !d.ExpiresAt.After(now) {
		return repository.ErrConflict
	}
	d.Status = repository.DeviceCodeApproved
	d.SubjectID = &subjectID
	return nil
}

func (r *deviceCodeRepo) Deny(ctx context.Context, id string, now time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	d, ok := r.c.devices[id]
	if !ok || d.Status != repository.DeviceCodePending || !d.ExpiresAt.After(now) {
		return repository.ErrConflict
	}
	d.Status = repository.DeviceCodeDenied
	return nil
}

func (r *deviceCodeRepo) Consume(ctx context.Context, id string, now time.Time) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	d, ok := r.c.devices[id]
	if !ok || d.Status != repository.DeviceCodeApproved || d.ConsumedAt != nil {
		return repository.ErrConflict
	}
	d.ConsumedAt = &now
	return nil
}

func (r *deviceCodeRepo) MarkPolled(ctx context.Context, id string, now time.Time, minInterval time.Duration) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	d, ok := r.c.devices[id]
	if !ok {
		return false, nil
	}
	if d.LastPolledAt != nil && d.LastPolledAt.After(now.Add(-minInterval)) {
		return false, nil
	}
	d.LastPolledAt = &now
	return true, nil
}

func (r *deviceCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	n := 0
	for id, d := range r.c.devices {
		if d.ExpiresAt.Before(now) {
			delete(r.c.devices, id)
			delete(r.c.devicesByHash, d.DeviceCodeHash)
			n++
		}
	}
	return n, nil
}
