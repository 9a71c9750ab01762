package repository

import (
	"context"
	"time"
)

// User is an identity as the core sees it: owned externally, read-mostly here.
type User struct {
	ID         string
	Email      string
	Name       string
	DisabledAt *time.Time
	CreatedAt  time.Time
}

// Active reports whether the subject may authenticate.
func (u *User) Active() bool {
	return u != nil && u.DisabledAt == nil
}

// CreateUserInput contains the data to provision an identity.
// Provisioning happens outside the core (identity bridge, seeding); the
// gateway only offers the primitive.
type CreateUserInput struct {
	Email string
	Name  string
}

// UserRepository defines identity lookups and provisioning.
type UserRepository interface {
	// GetByID returns the identity or ErrNotFound.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns the identity or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create provisions an identity and returns its id.
	// Returns ErrConflict if the email is already registered.
	Create(ctx context.Context, input CreateUserInput) (string, error)

	// SetDisabled enables or disables a subject.
	SetDisabled(ctx context.Context, id string, disabled bool) error
}
