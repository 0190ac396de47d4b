package rbac

import (
	"slices"
	"strings"

	"github.com/niveshya/leadops/internal/shared"
)

// DefaultColor is used when a role is created without a color.
const DefaultColor = "#6B7280"

// Palette lists the colors a role may be displayed with.
var Palette = []string{
	"#6B7280", // gray
	"#DC2626", // red
	"#F59E0B", // amber
	"#10B981", // emerald
	"#3B82F6", // blue
	"#6366F1", // indigo
	"#8B5CF6", // violet
	"#EC4899", // pink
}

// PermissionSpec describes a catalog entry before it is stored.
type PermissionSpec struct {
	Name        string
	Description string
	Category    Category
}

// DefaultPermissions returns the permission catalog installed at bootstrap.
func DefaultPermissions() []PermissionSpec {
	return []PermissionSpec{
		{shared.PermViewUsers, "View user profiles and information", CategoryUsers},
		{shared.PermCreateUsers, "Create new user accounts", CategoryUsers},
		{shared.PermEditUsers, "Edit user profiles and information", CategoryUsers},
		{shared.PermDeleteUsers, "Delete user accounts", CategoryUsers},

		{shared.PermViewContacts, "View contact information", CategoryContacts},
		{shared.PermCreateContacts, "Create new contacts", CategoryContacts},
		{shared.PermEditContacts, "Edit contact information", CategoryContacts},
		{shared.PermDeleteContacts, "Delete contacts", CategoryContacts},

		{shared.PermViewOrganizations, "View organization information", CategoryOrganizations},
		{shared.PermCreateOrganizations, "Create new organizations", CategoryOrganizations},
		{shared.PermEditOrganizations, "Edit organization information", CategoryOrganizations},
		{shared.PermDeleteOrganizations, "Delete organizations", CategoryOrganizations},

		{shared.PermViewOpportunities, "View investment opportunities", CategoryOpportunities},
		{shared.PermCreateOpportunities, "Create new opportunities", CategoryOpportunities},
		{shared.PermEditOpportunities, "Edit opportunity information", CategoryOpportunities},
		{shared.PermDeleteOpportunities, "Delete opportunities", CategoryOpportunities},

		{shared.PermViewTasks, "View tasks and assignments", CategoryTasks},
		{shared.PermCreateTasks, "Create new tasks", CategoryTasks},
		{shared.PermEditTasks, "Edit task information", CategoryTasks},
		{shared.PermDeleteTasks, "Delete tasks", CategoryTasks},
		{shared.PermAssignTasks, "Assign tasks to users", CategoryTasks},

		{shared.PermViewFundraising, "View fundraising activities", CategoryFundraising},
		{shared.PermCreateFundraising, "Create fundraising records", CategoryFundraising},
		{shared.PermEditFundraising, "Edit fundraising information", CategoryFundraising},
		{shared.PermDeleteFundraising, "Delete fundraising records", CategoryFundraising},

		{shared.PermViewTracker, "View tracking information", CategoryTracker},
		{shared.PermCreateTracker, "Create tracking entries", CategoryTracker},
		{shared.PermEditTracker, "Edit tracking information", CategoryTracker},
		{shared.PermDeleteTracker, "Delete tracking entries", CategoryTracker},

		{shared.PermViewMeetings, "View meeting information", CategoryMeetings},
		{shared.PermCreateMeetings, "Create and schedule meetings", CategoryMeetings},
		{shared.PermEditMeetings, "Edit meeting information", CategoryMeetings},
		{shared.PermDeleteMeetings, "Delete meetings", CategoryMeetings},

		{shared.PermManageRoles, "Create, edit, and assign roles", CategoryAdmin},
		{shared.PermManagePermissions, "Manage system permissions", CategoryAdmin},
		{shared.PermSystemSettings, "Access system settings", CategoryAdmin},
		{shared.PermViewAuditLogs, "View system audit logs", CategoryAdmin},

		{shared.PermViewReports, "Access reports and analytics", CategoryReports},
		{shared.PermExportData, "Export data to external formats", CategoryReports},
	}
}

// RoleSeed describes a system role installed at bootstrap.
type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
	Color       string
}

// SystemRoles returns the protected roles installed at bootstrap.
func SystemRoles() []RoleSeed {
	all := make([]string, 0, 40)
	for _, p := range DefaultPermissions() {
		all = append(all, p.Name)
	}

	crmFull := shared.CRMScopes()
	crmWrite := withoutDeletes(crmFull)

	admin := slices.Concat(
		[]string{shared.PermViewUsers, shared.PermCreateUsers, shared.PermEditUsers, shared.PermDeleteUsers},
		crmFull,
		[]string{shared.PermViewReports, shared.PermExportData, shared.PermManageRoles, shared.PermViewAuditLogs},
	)
	manager := slices.Concat(
		crmWrite,
		[]string{shared.PermViewUsers, shared.PermViewReports, shared.PermExportData},
	)
	analyst := slices.Concat(
		slices.DeleteFunc(slices.Clone(crmWrite), func(p string) bool { return p == shared.PermAssignTasks }),
		[]string{shared.PermViewReports, shared.PermExportData},
	)
	user := []string{
		shared.PermViewContacts, shared.PermViewOrganizations, shared.PermViewOpportunities,
		shared.PermViewTasks, shared.PermViewFundraising, shared.PermViewTracker, shared.PermViewMeetings,
		shared.PermCreateTasks, shared.PermEditTasks,
		shared.PermCreateMeetings, shared.PermEditMeetings,
		shared.PermViewReports,
	}

	return []RoleSeed{
		{Name: shared.RoleSuperAdmin, Description: "Full system access with all permissions", Permissions: all, Color: "#DC2626"},
		{Name: shared.RoleAdmin, Description: "Administrative access with role management capabilities", Permissions: admin, Color: "#DC2626"},
		{Name: shared.RoleManager, Description: "Management access with ability to oversee operations", Permissions: manager, Color: "#F59E0B"},
		{Name: shared.RoleAnalyst, Description: "Analytical access with data entry and reporting capabilities", Permissions: analyst, Color: "#3B82F6"},
		{Name: shared.RoleUser, Description: "Basic user access with view permissions", Permissions: user, Color: "#6B7280"},
	}
}

func withoutDeletes(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if strings.HasPrefix(p, "delete_") {
			continue
		}
		out = append(out, p)
	}
	return out
}

func inPalette(color string) bool {
	return slices.Contains(Palette, color)
}
