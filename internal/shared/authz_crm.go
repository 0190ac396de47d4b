package shared

// Relationship management permissions.
const (
	PermViewContacts   = "view_contacts"
	PermCreateContacts = "create_contacts"
	PermEditContacts   = "edit_contacts"
	PermDeleteContacts = "delete_contacts"

	PermViewOrganizations   = "view_organizations"
	PermCreateOrganizations = "create_organizations"
	PermEditOrganizations   = "edit_organizations"
	PermDeleteOrganizations = "delete_organizations"

	PermViewOpportunities   = "view_opportunities"
	PermCreateOpportunities = "create_opportunities"
	PermEditOpportunities   = "edit_opportunities"
	PermDeleteOpportunities = "delete_opportunities"

	PermViewTasks   = "view_tasks"
	PermCreateTasks = "create_tasks"
	PermEditTasks   = "edit_tasks"
	PermDeleteTasks = "delete_tasks"
	PermAssignTasks = "assign_tasks"

	PermViewFundraising   = "view_fundraising"
	PermCreateFundraising = "create_fundraising"
	PermEditFundraising   = "edit_fundraising"
	PermDeleteFundraising = "delete_fundraising"

	PermViewTracker   = "view_tracker"
	PermCreateTracker = "create_tracker"
	PermEditTracker   = "edit_tracker"
	PermDeleteTracker = "delete_tracker"

	PermViewMeetings   = "view_meetings"
	PermCreateMeetings = "create_meetings"
	PermEditMeetings   = "edit_meetings"
	PermDeleteMeetings = "delete_meetings"
)

// CRMScopes lists all relationship management permissions.
func CRMScopes() []string {
	return []string{
		PermViewContacts, PermCreateContacts, PermEditContacts, PermDeleteContacts,
		PermViewOrganizations, PermCreateOrganizations, PermEditOrganizations, PermDeleteOrganizations,
		PermViewOpportunities, PermCreateOpportunities, PermEditOpportunities, PermDeleteOpportunities,
		PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks, PermAssignTasks,
		PermViewFundraising, PermCreateFundraising, PermEditFundraising, PermDeleteFundraising,
		PermViewTracker, PermCreateTracker, PermEditTracker, PermDeleteTracker,
		PermViewMeetings, PermCreateMeetings, PermEditMeetings, PermDeleteMeetings,
	}
}
