package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// ─── RBACRepository ───

type rbacRepo struct{ pool *pgxpool.Pool }

func (r *rbacRepo) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT role FROM user_role WHERE user_id = $1`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pg: get user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rbacRepo) GetRolePermissions(ctx context.Context, roleNames []string) ([]string, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	const query = `
		SELECT DISTINCT permission
		FROM role_permission
		WHERE role = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, roleNames)
	if err != nil {
		return nil, fmt.Errorf("pg: get role permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var perm string
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *rbacRepo) CreateRole(ctx context.Context, role repository.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin create role: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO role (name, description, created_at) VALUES ($1, $2, NOW())`,
		role.Name, nullIfEmpty(role.Description),
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("pg: insert role: %w", err)
	}

	for _, perm := range role.Permissions {
		_, err = tx.Exec(ctx,
			`INSERT INTO role_permission (role, permission, created_at) VALUES ($1, $2, NOW())
			 ON CONFLICT DO NOTHING`,
			role.Name, perm,
		)
		if err != nil {
			return fmt.Errorf("pg: insert role permission: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *rbacRepo) AssignRole(ctx context.Context, userID, roleName string) error {
	const query = `
		INSERT INTO user_role (user_id, role, created_at)
		SELECT $1, name, NOW() FROM role WHERE name = $2
		ON CONFLICT DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, userID, roleName)
	if err != nil {
		return fmt.Errorf("pg: assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// O el rol no existe, o la asignación ya estaba hecha.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM role WHERE name = $1)`, roleName,
		).Scan(&exists); err != nil {
			return fmt.Errorf("pg: check role: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
	}
	return nil
}
