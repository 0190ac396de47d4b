// Package admin implements the role-management console used by operators.
//
// Every operation checks the session's roles before calling the Data API so the
// console never offers or attempts an action the user cannot perform. The server
// repeats every check.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/niveshya/leadops/internal/guard"
	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/session"
	"github.com/niveshya/leadops/internal/shared"
)

// API is the subset of the Data API used by the console.
type API interface {
	PermissionLister
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id string) (rbac.Role, error)
	CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error)
	UpdateRole(ctx context.Context, id string, req rbac.UpdateRoleRequest) (rbac.Role, error)
	DeleteRole(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleID string) (rbac.RoleAssignment, error)
	UnassignRole(ctx context.Context, userID, roleID string) error
	GetUserRoles(ctx context.Context, userID string) (rbac.UserRolesResponse, error)
}

// Sessions exposes the current session snapshot.
type Sessions interface {
	Current() *session.Session
}

var (
	roleEditors   = []string{shared.RoleSuperAdmin}
	roleAssigners = []string{shared.RoleSuperAdmin, shared.RoleAdmin}
)

// Affordances tells a UI which role-management actions to offer.
type Affordances struct {
	CanViewRoles   bool `json:"can_view_roles"`
	CanCreateRoles bool `json:"can_create_roles"`
	CanEditRoles   bool `json:"can_edit_roles"`
	CanDeleteRoles bool `json:"can_delete_roles"`
	CanAssignRoles bool `json:"can_assign_roles"`
}

// AffordancesFor derives the affordances of a session.
func AffordancesFor(s *session.Session) Affordances {
	if !s.Authenticated() {
		return Affordances{}
	}
	editor := guard.HasAnyRole(s, roleEditors)
	assigner := guard.HasAnyRole(s, roleAssigners)
	return Affordances{
		CanViewRoles:   assigner,
		CanCreateRoles: editor,
		CanEditRoles:   editor,
		CanDeleteRoles: editor,
		CanAssignRoles: assigner,
	}
}

// Console runs role-management actions on behalf of the signed-in user.
type Console struct {
	api      API
	sessions Sessions
	catalog  *Catalog
	logger   *slog.Logger
}

// NewConsole constructs a Console.
func NewConsole(api API, sessions Sessions, catalog *Catalog, logger *slog.Logger) *Console {
	if catalog == nil {
		catalog = NewCatalog(api, 0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Console{api: api, sessions: sessions, catalog: catalog, logger: logger}
}

// Affordances returns the affordances of the current session.
func (c *Console) Affordances() Affordances {
	return AffordancesFor(c.sessions.Current())
}

// Permissions returns the cached permission catalog.
func (c *Console) Permissions(ctx context.Context) ([]rbac.Permission, error) {
	return c.catalog.Permissions(ctx)
}

// Roles lists roles.
func (c *Console) Roles(ctx context.Context) ([]rbac.Role, error) {
	if err := c.require(roleAssigners); err != nil {
		return nil, err
	}
	return c.api.ListRoles(ctx)
}

// CreateRole validates the request locally and creates the role.
func (c *Console) CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error) {
	if err := c.require(roleEditors); err != nil {
		return rbac.Role{}, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return rbac.Role{}, shared.NewFieldError(shared.ErrValidation, "name", "")
	}
	if err := c.catalog.Validate(ctx, req.Permissions); err != nil {
		return rbac.Role{}, err
	}
	role, err := c.api.CreateRole(ctx, req)
	if err != nil {
		return rbac.Role{}, err
	}
	c.logger.Info("role created", slog.String("role_id", role.ID), slog.String("name", role.Name))
	return role, nil
}

// UpdateRole validates the request locally and updates the role.
func (c *Console) UpdateRole(ctx context.Context, id string, req rbac.UpdateRoleRequest) (rbac.Role, error) {
	if err := c.require(roleEditors); err != nil {
		return rbac.Role{}, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return rbac.Role{}, shared.NewFieldError(shared.ErrValidation, "name", "")
	}
	if req.Permissions != nil {
		if err := c.catalog.Validate(ctx, *req.Permissions); err != nil {
			return rbac.Role{}, err
		}
	}
	return c.api.UpdateRole(ctx, id, req)
}

// DeleteRole deletes a role. System roles are refused without calling delete.
func (c *Console) DeleteRole(ctx context.Context, id string) error {
	if err := c.require(roleEditors); err != nil {
		return err
	}
	role, err := c.api.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: system role %q cannot be deleted", shared.ErrForbidden, role.Name)
	}
	if err := c.api.DeleteRole(ctx, id); err != nil {
		return err
	}
	c.logger.Info("role deleted", slog.String("role_id", id))
	return nil
}

// AssignRole grants a role to a user.
func (c *Console) AssignRole(ctx context.Context, userID, roleID string) (rbac.RoleAssignment, error) {
	if err := c.require(roleAssigners); err != nil {
		return rbac.RoleAssignment{}, err
	}
	return c.api.AssignRole(ctx, userID, roleID)
}

// UnassignRole revokes a role from a user.
func (c *Console) UnassignRole(ctx context.Context, userID, roleID string) error {
	if err := c.require(roleAssigners); err != nil {
		return err
	}
	return c.api.UnassignRole(ctx, userID, roleID)
}

// UserRoles lists a user's roles. Users may always view their own.
func (c *Console) UserRoles(ctx context.Context, userID string) (rbac.UserRolesResponse, error) {
	sess := c.sessions.Current()
	if sess.UserID() != userID {
		if err := c.require(roleAssigners); err != nil {
			return rbac.UserRolesResponse{}, err
		}
	} else if !sess.Authenticated() {
		return rbac.UserRolesResponse{}, shared.ErrUnauthenticated
	}
	return c.api.GetUserRoles(ctx, userID)
}

func (c *Console) require(roles []string) error {
	return guard.Require(c.sessions.Current(), roles...)
}
