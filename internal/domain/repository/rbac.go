package repository

import "context"

// Role groups permissions under a name. Roles are broad categories;
// permissions are flat capability strings.
type Role struct {
	Name        string
	Description string
	Permissions []string
}

// RBACRepository resolves role and permission sets for authorization
// decisions. Lookups are performed fresh on every authenticated request.
type RBACRepository interface {
	// GetUserRoles returns the role names assigned to a subject.
	GetUserRoles(ctx context.Context, userID string) ([]string, error)

	// GetRolePermissions returns the union of permissions granted by the
	// given role names. Unknown names contribute nothing.
	GetRolePermissions(ctx context.Context, roleNames []string) ([]string, error)

	// CreateRole registers a role. Returns ErrConflict if the name exists.
	CreateRole(ctx context.Context, role Role) error

	// AssignRole grants a role to a subject. Assigning an unknown role
	// returns ErrNotFound; re-assigning is a no-op.
	AssignRole(ctx context.Context, userID, roleName string) error
}
