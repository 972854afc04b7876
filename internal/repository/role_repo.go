package repository

import (
	"context"
	"fmt"
	"strings"

	"go-gamification/internal/model"
)

type RoleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) RolesForUser(ctx context.Context, userID int64) ([]model.RoleRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.id, r.name
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.RoleRef, 0)
	for rows.Next() {
		var role model.RoleRef
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Ensure returns the role called name, creating it if needed.
func (r *RoleRepository) Ensure(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO roles (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`, strings.ToLower(strings.TrimSpace(name))).
		Scan(&role.ID, &role.Name)
	if err != nil {
		return model.Role{}, fmt.Errorf("ensure role: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) Assign(ctx context.Context, userID int64, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}
