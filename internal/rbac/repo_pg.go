package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niveshya/leadops/internal/platform/db"
	"github.com/niveshya/leadops/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// isUUID reports whether every id can be cast to the uuid columns.
func isUUID(ids ...string) bool {
	for _, id := range ids {
		if uuid.Validate(id) != nil {
			return false
		}
	}
	return true
}

const selectRoles = `SELECT r.id::text, r.name, r.description, r.is_system_role, r.color, r.created_at, r.updated_at,
	COALESCE(array_agg(rp.permission_name ORDER BY rp.permission_name) FILTER (WHERE rp.permission_name IS NOT NULL), '{}')
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id`

// ListPermissions returns the catalog ordered by category then name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, category, created_at FROM permissions ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		var category string
		if err := rows.Scan(&p.Name, &p.Description, &category, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Category = Category(category)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// UpsertPermission inserts a permission or refreshes its description and category.
func (r *PGRepository) UpsertPermission(ctx context.Context, spec PermissionSpec) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO permissions (name, description, category, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, category = EXCLUDED.category`,
		spec.Name, spec.Description, string(spec.Category))
	return err
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, selectRoles+` GROUP BY r.id ORDER BY r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *PGRepository) GetRole(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx, selectRoles+` WHERE r.id::text = $1 GROUP BY r.id`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

// FindRoleByName fetches a role by case-insensitive name.
func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, selectRoles+` WHERE lower(r.name) = lower($1) GROUP BY r.id`, name)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

// CreateRole inserts the role and its permission set in one transaction.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO roles (id, name, description, is_system_role, color, created_at)
			VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
			role.ID, role.Name, role.Description, role.IsSystemRole, role.Color, role.CreatedAt)
		if err != nil {
			return err
		}
		return replacePermissions(ctx, tx, role.ID, role.Permissions)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, shared.NewFieldError(shared.ErrDuplicateName, "name", role.Name)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole overwrites the mutable fields and permission set of a role.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles SET name = $2, description = $3, color = $4, updated_at = $5
			WHERE id = $1::uuid`,
			role.ID, role.Name, role.Description, role.Color, role.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return replacePermissions(ctx, tx, role.ID, role.Permissions)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, shared.NewFieldError(shared.ErrDuplicateName, "name", role.Name)
		}
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, err
		}
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a role. Returns ErrNotFound if nothing was deleted.
func (r *PGRepository) DeleteRole(ctx context.Context, id string) error {
	if !isUUID(id) {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountAssignments returns the number of users holding the role.
func (r *PGRepository) CountAssignments(ctx context.Context, roleID string) (int, error) {
	if !isUUID(roleID) {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM user_roles WHERE role_id = $1::uuid`, roleID).Scan(&n)
	return n, err
}

// AssignRole inserts the assignment once; an existing pair is returned untouched.
func (r *PGRepository) AssignRole(ctx context.Context, a RoleAssignment) (RoleAssignment, bool, error) {
	if !isUUID(a.UserID, a.RoleID) {
		return RoleAssignment{}, false, shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by)
		VALUES ($1::uuid, $2::uuid, $3, $4::uuid)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		a.UserID, a.RoleID, a.AssignedAt, a.AssignedBy)
	if err != nil {
		return RoleAssignment{}, false, fmt.Errorf("rbac: assign role: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return a, true, nil
	}
	var stored RoleAssignment
	var assignedBy pgtype.Text
	err = r.pool.QueryRow(ctx, `SELECT user_id::text, role_id::text, assigned_at, assigned_by::text
		FROM user_roles WHERE user_id = $1::uuid AND role_id = $2::uuid`, a.UserID, a.RoleID).
		Scan(&stored.UserID, &stored.RoleID, &stored.AssignedAt, &assignedBy)
	if err != nil {
		return RoleAssignment{}, false, fmt.Errorf("rbac: load assignment: %w", err)
	}
	stored.AssignedBy = textPtr(assignedBy)
	return stored, false, nil
}

// UnassignRole removes the assignment if present.
func (r *PGRepository) UnassignRole(ctx context.Context, userID, roleID string) (bool, error) {
	if !isUUID(userID, roleID) {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1::uuid AND role_id = $2::uuid`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUserRoles returns the roles assigned to a user ordered by assignment time.
func (r *PGRepository) ListUserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	if !isUUID(userID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT ur.assigned_at, ur.assigned_by::text, ur.role_id::text
		FROM user_roles ur WHERE ur.user_id = $1::uuid ORDER BY ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	type entry struct {
		roleID     string
		assignedAt pgtype.Timestamptz
		assignedBy pgtype.Text
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.assignedAt, &e.assignedBy, &e.roleID); err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]UserRole, 0, len(entries))
	for _, e := range entries {
		role, err := r.GetRole(ctx, e.roleID)
		if err != nil {
			return nil, err
		}
		out = append(out, UserRole{Role: role, AssignedAt: e.assignedAt.Time, AssignedBy: textPtr(e.assignedBy)})
	}
	return out, nil
}

func replacePermissions(ctx context.Context, tx pgx.Tx, roleID string, perms []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1::uuid`, roleID); err != nil {
		return err
	}
	if len(perms) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_name)
		SELECT $1::uuid, unnest($2::text[])`, roleID, perms)
	return err
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var description, color pgtype.Text
	var updatedAt pgtype.Timestamptz
	if err := row.Scan(&role.ID, &role.Name, &description, &role.IsSystemRole, &color, &role.CreatedAt, &updatedAt, &role.Permissions); err != nil {
		return Role{}, err
	}
	role.Description = textPtr(description)
	role.Color = color.String
	if updatedAt.Valid {
		t := updatedAt.Time
		role.UpdatedAt = &t
	}
	return role, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}
