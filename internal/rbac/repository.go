package rbac

import "context"

// Repository defines persistence operations for the RBAC module.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, spec PermissionSpec) error

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	// FindRoleByName matches names case-insensitively.
	FindRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	CountAssignments(ctx context.Context, roleID string) (int, error)
	// AssignRole inserts the assignment unless the pair already exists, in which
	// case the stored assignment is returned with created=false.
	AssignRole(ctx context.Context, a RoleAssignment) (stored RoleAssignment, created bool, err error)
	UnassignRole(ctx context.Context, userID, roleID string) (removed bool, err error)
	ListUserRoles(ctx context.Context, userID string) ([]UserRole, error)
}

// UserDirectory resolves user identities for assignment responses.
type UserDirectory interface {
	UserName(ctx context.Context, userID string) (string, error)
}
