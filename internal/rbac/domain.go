package rbac

import "time"

// Category groups permissions for display.
type Category string

// Permission categories.
const (
	CategoryUsers         Category = "User Management"
	CategoryContacts      Category = "Contact Management"
	CategoryOrganizations Category = "Organization Management"
	CategoryOpportunities Category = "Opportunity Management"
	CategoryTasks         Category = "Task Management"
	CategoryFundraising   Category = "Fundraising Management"
	CategoryTracker       Category = "Tracker Management"
	CategoryMeetings      Category = "Meeting Management"
	CategoryAdmin         Category = "Administration"
	CategoryReports       Category = "Reports"
)

// Permission represents an atomic capability.
type Permission struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Role represents a named bundle of permissions.
type Role struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	Permissions  []string   `json:"permissions"`
	IsSystemRole bool       `json:"is_system_role"`
	Color        string     `json:"color,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// HasPermission reports whether the role grants the named permission.
func (r Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy *string   `json:"assigned_by,omitempty"`
}

// UserRole is one entry of UserRolesResponse.
type UserRole struct {
	Role       Role      `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy *string   `json:"assigned_by,omitempty"`
}

// UserRolesResponse lists the roles granted to a user.
type UserRolesResponse struct {
	UserID   string     `json:"user_id"`
	UserName string     `json:"user_name"`
	Roles    []UserRole `json:"roles"`
}

// CreateRoleRequest carries the fields for a new role.
type CreateRoleRequest struct {
	Name        string   `json:"name" validate:"required,max=50"`
	Description *string  `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
	Color       *string  `json:"color,omitempty"`
}

// UpdateRoleRequest carries a partial role update. Nil fields are left untouched.
type UpdateRoleRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,max=50"`
	Description *string   `json:"description,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
	Color       *string   `json:"color,omitempty"`
}

// AssignRoleRequest names a (user, role) pair.
type AssignRoleRequest struct {
	UserID string `json:"user_id" validate:"required"`
	RoleID string `json:"role_id" validate:"required"`
}
