package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type userRepo struct{ c *Connection }

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	if u.DisabledAt != nil {
		t := *u.DisabledAt
		cp.DisabledAt = &t
	}
	return &cp
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	u, ok := r.c.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	id, ok := r.c.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(r.c.users[id]), nil
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (string, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	key := strings.ToLower(input.Email)
	if _, exists := r.c.usersByEmail[key]; exists {
		return "", repository.ErrConflict
	}

	u := &repository.User{
		ID:        uuid.NewString(),
		Email:     input.Email,
		Name:      input.Name,
		CreatedAt: time.Now(),
	}
	r.c.users[u.ID] = u
	r.c.usersByEmail[key] = u.ID
	return u.ID, nil
}

func (r *userRepo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	u, ok := r.c.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if disabled {
		if u.DisabledAt == nil {
			now := time.Now()
			u.DisabledAt = &now
		}
	} else {
		u.DisabledAt = nil
	}
	return nil
}
