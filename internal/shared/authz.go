package shared

// Core gate permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView   = "roles.view"
	PermRolesEdit   = "roles.edit"
	PermRolesDelete = "roles.delete"

	PermPermissionsView = "permissions.view"

	PermSystemManage = "system.manage"
)

// CoreScopes lists all permissions the gate's own surface checks for.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermRolesDelete,
		PermPermissionsView,
		PermSystemManage,
	}
}
