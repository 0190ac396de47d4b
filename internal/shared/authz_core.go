package shared

// Administration and user management permissions.
const (
	PermViewUsers   = "view_users"
	PermCreateUsers = "create_users"
	PermEditUsers   = "edit_users"
	PermDeleteUsers = "delete_users"

	PermManageRoles       = "manage_roles"
	PermManagePermissions = "manage_permissions"
	PermSystemSettings    = "system_settings"
	PermViewAuditLogs     = "view_audit_logs"

	PermViewReports = "view_reports"
	PermExportData  = "export_data"
)

// System role names referenced by policy.
const (
	RoleSuperAdmin = "Super Admin"
	RoleAdmin      = "Admin"
	RoleManager    = "Manager"
	RoleAnalyst    = "Analyst"
	RoleUser       = "User"
)

// CoreScopes lists all administration permissions.
func CoreScopes() []string {
	return []string{
		PermViewUsers,
		PermCreateUsers,
		PermEditUsers,
		PermDeleteUsers,
		PermManageRoles,
		PermManagePermissions,
		PermSystemSettings,
		PermViewAuditLogs,
		PermViewReports,
		PermExportData,
	}
}
