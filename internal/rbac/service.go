package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/niveshya/leadops/internal/shared"
)

// MaxRoleNameLength bounds role names in runes.
const MaxRoleNameLength = 50

// Service orchestrates RBAC operations and enforces role-management policy.
// Every check resolves the actor's roles and permissions from the repository,
// never from claims carried by the caller.
type Service struct {
	repo   Repository
	users  UserDirectory
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, users UserDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, users: users, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ListPermissions returns the permission catalog. No authorization is required.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context, actor shared.Principal) ([]Role, error) {
	if err := s.requirePermission(ctx, actor, shared.PermManageRoles); err != nil {
		return nil, err
	}
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, actor shared.Principal, id string) (Role, error) {
	if err := s.requirePermission(ctx, actor, shared.PermManageRoles); err != nil {
		return Role{}, err
	}
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new non-system role.
func (s *Service) CreateRole(ctx context.Context, actor shared.Principal, req CreateRoleRequest) (Role, error) {
	if err := s.requireRole(ctx, actor, shared.RoleSuperAdmin); err != nil {
		return Role{}, err
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return Role{}, err
	}
	perms, err := s.validatePermissions(ctx, req.Permissions)
	if err != nil {
		return Role{}, err
	}
	color := DefaultColor
	if req.Color != nil {
		if color, err = normalizeColor(*req.Color); err != nil {
			return Role{}, err
		}
	}
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return Role{}, err
	}

	role, err := s.repo.CreateRole(ctx, Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: trimOptional(req.Description),
		Permissions: perms,
		Color:       color,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role created", slog.String("role_id", role.ID), slog.String("name", role.Name), slog.String("actor", actor.UserID))
	return role, nil
}

// UpdateRole applies a partial update. System roles keep their name and at least one permission.
func (s *Service) UpdateRole(ctx context.Context, actor shared.Principal, id string, req UpdateRoleRequest) (Role, error) {
	if err := s.requireRole(ctx, actor, shared.RoleSuperAdmin); err != nil {
		return Role{}, err
	}
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}

	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return Role{}, err
		}
		if name != role.Name {
			if role.IsSystemRole {
				return Role{}, fmt.Errorf("%w: system role %q cannot be renamed", shared.ErrForbidden, role.Name)
			}
			if err := s.ensureUniqueName(ctx, name, role.ID); err != nil {
				return Role{}, err
			}
			role.Name = name
		}
	}
	if req.Permissions != nil {
		perms, err := s.validatePermissions(ctx, *req.Permissions)
		if err != nil {
			return Role{}, err
		}
		if role.IsSystemRole && len(perms) == 0 {
			return Role{}, fmt.Errorf("%w: system role %q must keep at least one permission", shared.ErrForbidden, role.Name)
		}
		role.Permissions = perms
	}
	if req.Color != nil {
		color, err := normalizeColor(*req.Color)
		if err != nil {
			return Role{}, err
		}
		role.Color = color
	}
	if req.Description != nil {
		role.Description = trimOptional(req.Description)
	}
	now := s.now()
	role.UpdatedAt = &now

	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role updated", slog.String("role_id", updated.ID), slog.String("actor", actor.UserID))
	return updated, nil
}

// DeleteRole removes a role that is neither a system role nor assigned to any user.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Principal, id string) error {
	if err := s.requireRole(ctx, actor, shared.RoleSuperAdmin); err != nil {
		return err
	}
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: system role %q cannot be deleted", shared.ErrForbidden, role.Name)
	}
	n, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: role %q is assigned to %d user(s)", shared.ErrConflict, role.Name, n)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", slog.String("role_id", id), slog.String("actor", actor.UserID))
	return nil
}

// AssignRole grants a role to a user. Assigning an existing pair returns the stored assignment.
func (s *Service) AssignRole(ctx context.Context, actor shared.Principal, userID, roleID string) (RoleAssignment, error) {
	if err := s.requirePermission(ctx, actor, shared.PermManageRoles); err != nil {
		return RoleAssignment{}, err
	}
	if _, err := s.users.UserName(ctx, userID); err != nil {
		return RoleAssignment{}, err
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RoleAssignment{}, err
	}
	assignedBy := actor.UserID
	stored, created, err := s.repo.AssignRole(ctx, RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: s.now(),
		AssignedBy: &assignedBy,
	})
	if err != nil {
		return RoleAssignment{}, err
	}
	if created {
		s.logger.Info("role assigned", slog.String("user_id", userID), slog.String("role_id", roleID), slog.String("actor", actor.UserID))
	}
	return stored, nil
}

// UnassignRole revokes a role from a user. Removing an absent assignment is not an error.
func (s *Service) UnassignRole(ctx context.Context, actor shared.Principal, userID, roleID string) error {
	if err := s.requirePermission(ctx, actor, shared.PermManageRoles); err != nil {
		return err
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if role.IsSystemRole && role.Name == shared.RoleSuperAdmin {
		if err := s.protectLastHolder(ctx, userID, role); err != nil {
			return err
		}
	}
	removed, err := s.repo.UnassignRole(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if removed {
		s.logger.Info("role unassigned", slog.String("user_id", userID), slog.String("role_id", roleID), slog.String("actor", actor.UserID))
	}
	return nil
}

// GetUserRoles lists the roles assigned to a user. Users may always read their own roles.
func (s *Service) GetUserRoles(ctx context.Context, actor shared.Principal, userID string) (UserRolesResponse, error) {
	if actor.IsZero() {
		return UserRolesResponse{}, shared.ErrUnauthenticated
	}
	if actor.UserID != userID {
		if err := s.requirePermission(ctx, actor, shared.PermManageRoles); err != nil {
			return UserRolesResponse{}, err
		}
	}
	name, err := s.users.UserName(ctx, userID)
	if err != nil {
		return UserRolesResponse{}, err
	}
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return UserRolesResponse{}, err
	}
	if roles == nil {
		roles = []UserRole{}
	}
	return UserRolesResponse{UserID: userID, UserName: name, Roles: roles}, nil
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	var perms []string
	for _, ur := range roles {
		perms = append(perms, ur.Role.Permissions...)
	}
	slices.Sort(perms)
	return slices.Compact(perms), nil
}

// RoleNames returns the names of the roles assigned to a user.
func (s *Service) RoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.repo.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, ur := range roles {
		names = append(names, ur.Role.Name)
	}
	return names, nil
}

func (s *Service) requirePermission(ctx context.Context, actor shared.Principal, perm string) error {
	if actor.IsZero() {
		return shared.ErrUnauthenticated
	}
	granted, err := s.EffectivePermissions(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !hasAnyPermission(granted, []string{perm}) {
		return fmt.Errorf("%w: requires %s", shared.ErrUnauthorized, perm)
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, actor shared.Principal, role string) error {
	if actor.IsZero() {
		return shared.ErrUnauthenticated
	}
	names, err := s.RoleNames(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !slices.Contains(names, role) {
		return fmt.Errorf("%w: requires role %s", shared.ErrUnauthorized, role)
	}
	return nil
}

func (s *Service) protectLastHolder(ctx context.Context, userID string, role Role) error {
	held, err := s.RoleNames(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(held, role.Name) {
		return nil
	}
	n, err := s.repo.CountAssignments(ctx, role.ID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return fmt.Errorf("%w: cannot remove the last %s", shared.ErrConflict, role.Name)
	}
	return nil
}

func (s *Service) validatePermissions(ctx context.Context, requested []string) ([]string, error) {
	catalog, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(catalog))
	for _, p := range catalog {
		known[p.Name] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, raw := range requested {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := known[name]; !ok {
			return nil, shared.NewFieldError(shared.ErrInvalidPermission, "permissions", raw)
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *Service) ensureUniqueName(ctx context.Context, name, exceptID string) error {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	folded := foldName(name)
	for _, r := range roles {
		if r.ID != exceptID && foldName(r.Name) == folded {
			return shared.NewFieldError(shared.ErrDuplicateName, "name", name)
		}
	}
	return nil
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", shared.NewFieldError(shared.ErrValidation, "name", "")
	}
	if utf8.RuneCountInString(name) > MaxRoleNameLength {
		return "", shared.NewFieldError(shared.ErrValidation, "name", name)
	}
	return name, nil
}

func normalizeColor(raw string) (string, error) {
	color := strings.ToUpper(strings.TrimSpace(raw))
	if color == "" {
		return DefaultColor, nil
	}
	if !inPalette(color) {
		return "", shared.NewFieldError(shared.ErrValidation, "color", raw)
	}
	return color, nil
}

// foldName returns the case-folded form used for name uniqueness.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
