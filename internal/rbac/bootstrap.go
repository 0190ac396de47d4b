package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/niveshya/leadops/internal/shared"
)

// BootstrapOptions controls startup seeding.
type BootstrapOptions struct {
	// SuperAdminUserID, when set, receives the Super Admin role.
	SuperAdminUserID string
}

// Bootstrap installs the permission catalog and any missing system roles.
// Existing roles are left as they are, so edits made by administrators survive restarts.
func (s *Service) Bootstrap(ctx context.Context, opts BootstrapOptions) error {
	for _, spec := range DefaultPermissions() {
		if err := s.repo.UpsertPermission(ctx, spec); err != nil {
			return fmt.Errorf("rbac: seed permission %s: %w", spec.Name, err)
		}
	}

	var superAdmin Role
	for _, seed := range SystemRoles() {
		role, err := s.repo.FindRoleByName(ctx, seed.Name)
		if errors.Is(err, shared.ErrNotFound) {
			desc := seed.Description
			role, err = s.repo.CreateRole(ctx, Role{
				ID:           uuid.NewString(),
				Name:         seed.Name,
				Description:  &desc,
				Permissions:  seed.Permissions,
				IsSystemRole: true,
				Color:        seed.Color,
				CreatedAt:    s.now(),
			})
			if err == nil {
				s.logger.Info("system role seeded", slog.String("name", seed.Name))
			}
		}
		if err != nil {
			return fmt.Errorf("rbac: seed role %s: %w", seed.Name, err)
		}
		if seed.Name == shared.RoleSuperAdmin {
			superAdmin = role
		}
	}

	if opts.SuperAdminUserID == "" {
		return nil
	}
	_, created, err := s.repo.AssignRole(ctx, RoleAssignment{
		UserID:     opts.SuperAdminUserID,
		RoleID:     superAdmin.ID,
		AssignedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("rbac: assign bootstrap super admin: %w", err)
	}
	if created {
		s.logger.Info("bootstrap super admin assigned", slog.String("user_id", opts.SuperAdminUserID))
	}
	return nil
}
