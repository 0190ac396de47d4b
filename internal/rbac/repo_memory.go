package rbac

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/niveshya/leadops/internal/shared"
)

// MemoryRepository is an in-process Repository used by tests and local tooling.
type MemoryRepository struct {
	mu          sync.RWMutex
	permissions map[string]Permission
	roles       map[string]Role
	assignments map[assignmentKey]RoleAssignment
}

type assignmentKey struct {
	userID string
	roleID string
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		permissions: make(map[string]Permission),
		roles:       make(map[string]Role),
		assignments: make(map[assignmentKey]RoleAssignment),
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryRepository) UpsertPermission(ctx context.Context, spec PermissionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.permissions[spec.Name]
	if !ok {
		p = Permission{Name: spec.Name, CreatedAt: time.Now().UTC()}
	}
	p.Description = spec.Description
	p.Category = spec.Category
	m.permissions[spec.Name] = p
	return nil
}

func (m *MemoryRepository) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, cloneRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) GetRole(ctx context.Context, id string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return cloneRole(r), nil
}

func (m *MemoryRepository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, name) {
			return cloneRole(r), nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *MemoryRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, role.Name) {
			return Role{}, shared.NewFieldError(shared.ErrDuplicateName, "name", role.Name)
		}
	}
	m.roles[role.ID] = cloneRole(role)
	return cloneRole(role), nil
}

func (m *MemoryRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	for id, r := range m.roles {
		if id != role.ID && strings.EqualFold(r.Name, role.Name) {
			return Role{}, shared.NewFieldError(shared.ErrDuplicateName, "name", role.Name)
		}
	}
	m.roles[role.ID] = cloneRole(role)
	return cloneRole(role), nil
}

func (m *MemoryRepository) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *MemoryRepository) CountAssignments(ctx context.Context, roleID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.assignments {
		if k.roleID == roleID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) AssignRole(ctx context.Context, a RoleAssignment) (RoleAssignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[a.RoleID]; !ok {
		return RoleAssignment{}, false, shared.ErrNotFound
	}
	key := assignmentKey{userID: a.UserID, roleID: a.RoleID}
	if existing, ok := m.assignments[key]; ok {
		return existing, false, nil
	}
	m.assignments[key] = a
	return a, true, nil
}

func (m *MemoryRepository) UnassignRole(ctx context.Context, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := assignmentKey{userID: userID, roleID: roleID}
	if _, ok := m.assignments[key]; !ok {
		return false, nil
	}
	delete(m.assignments, key)
	return true, nil
}

func (m *MemoryRepository) ListUserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []UserRole
	for k, a := range m.assignments {
		if k.userID != userID {
			continue
		}
		role, ok := m.roles[k.roleID]
		if !ok {
			continue
		}
		out = append(out, UserRole{Role: cloneRole(role), AssignedAt: a.AssignedAt, AssignedBy: a.AssignedBy})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].Role.Name < out[j].Role.Name
	})
	return out, nil
}

func cloneRole(r Role) Role {
	r.Permissions = slices.Clone(r.Permissions)
	return r
}
