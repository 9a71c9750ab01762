package memory

import (
	"context"
	"sort"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type rbacRepo struct{ c *Connection }

func (r *rbacRepo) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	set, ok := r.c.userRoles[userID]
	if !ok {
		return nil, nil
	}
	roles := make([]string, 0, len(set))
	for name := range set {
		roles = append(roles, name)
	}
	sort.Strings(roles)
	return roles, nil
}

func (r *rbacRepo) GetRolePermissions(ctx context.Context, roleNames []string) ([]string, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, name := range roleNames {
		role, ok := r.c.roles[name]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			seen[p] = struct{}{}
		}
	}
	perms := make([]string, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms, nil
}

func (r *rbacRepo) CreateRole(ctx context.Context, role repository.Role) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if _, exists := r.c.roles[role.Name]; exists {
		return repository.ErrConflict
	}
	cp := role
	cp.Permissions = append([]string(nil), role.Permissions...)
	r.c.roles[role.Name] = &cp
	return nil
}

func (r *rbacRepo) AssignRole(ctx context.Context, userID, roleName string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if _, ok := r.c.roles[roleName]; !ok {
		return repository.ErrNotFound
	}
	set, ok := r.c.userRoles[userID]
	if !ok {
		set = make(map[string]struct{})
		r.c.userRoles[userID] = set
	}
	set[roleName] = struct{}{}
	return nil
}
