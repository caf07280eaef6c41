package rbac

// The two role names the administrative API will ever create. Anything else is
// rejected with ErrRoleNameNotAllowed; the whitelist, not the caller, decides
// system scope.
const (
	RoleSuperAdmin = "super-admin"
	RoleOrgAdmin   = "org-admin"
)

// Capability keys checked by the guards.
const (
	ResourceSystem        = "system"
	ResourceOrganizations = "organizations"
	ResourceUsers         = "users"
	ResourceRoles         = "roles"
	ResourceKnowledge     = "knowledge_bases"
	ResourceConversations = "conversations"
	ResourceFiles         = "files"

	ActionAdmin  = "admin"
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// BuiltinPermissions is the fixed universe of (resource, action) pairs known
// to the host application. EnsurePermissions seeds them idempotently.
var BuiltinPermissions = []Permission{
	{Resource: ResourceSystem, Action: ActionAdmin, Name: "system.admin", Description: "Full system administration"},
	{Resource: ResourceOrganizations, Action: ActionCreate, Name: "organizations.create", Description: "Create organizations"},
	{Resource: ResourceOrganizations, Action: ActionRead, Name: "organizations.read", Description: "View organizations"},
	{Resource: ResourceOrganizations, Action: ActionUpdate, Name: "organizations.update", Description: "Modify organizations"},
	{Resource: ResourceOrganizations, Action: ActionDelete, Name: "organizations.delete", Description: "Deactivate organizations"},
	{Resource: ResourceUsers, Action: ActionCreate, Name: "users.create", Description: "Provision users"},
	{Resource: ResourceUsers, Action: ActionRead, Name: "users.read", Description: "View users"},
	{Resource: ResourceUsers, Action: ActionUpdate, Name: "users.update", Description: "Modify users"},
	{Resource: ResourceUsers, Action: ActionDelete, Name: "users.delete", Description: "Deactivate users"},
	{Resource: ResourceRoles, Action: ActionCreate, Name: "roles.create", Description: "Create roles"},
	{Resource: ResourceRoles, Action: ActionRead, Name: "roles.read", Description: "View roles and assignments"},
	{Resource: ResourceRoles, Action: ActionUpdate, Name: "roles.update", Description: "Assign and revoke roles"},
	{Resource: ResourceKnowledge, Action: ActionCreate, Name: "knowledge_bases.create", Description: "Create knowledge bases"},
	{Resource: ResourceKnowledge, Action: ActionRead, Name: "knowledge_bases.read", Description: "Query knowledge bases"},
	{Resource: ResourceKnowledge, Action: ActionUpdate, Name: "knowledge_bases.update", Description: "Modify knowledge bases"},
	{Resource: ResourceKnowledge, Action: ActionDelete, Name: "knowledge_bases.delete", Description: "Delete knowledge bases"},
	{Resource: ResourceConversations, Action: ActionCreate, Name: "conversations.create", Description: "Start conversations"},
	{Resource: ResourceConversations, Action: ActionRead, Name: "conversations.read", Description: "View conversations"},
	{Resource: ResourceFiles, Action: ActionCreate, Name: "files.create", Description: "Upload files"},
	{Resource: ResourceFiles, Action: ActionRead, Name: "files.read", Description: "Download files"},
	{Resource: ResourceFiles, Action: ActionDelete, Name: "files.delete", Description: "Delete files"},
}

// DefaultRoles are the roles SeedDefaultRoles guarantees to exist.
var DefaultRoles = []Role{
	{Name: RoleSuperAdmin, Description: "System super administrator", IsSystemRole: true},
	{Name: RoleOrgAdmin, Description: "Organization administrator", IsSystemRole: false},
}

func allowedRoleName(name string) bool {
	return name == RoleSuperAdmin || name == RoleOrgAdmin
}
