package rbac

import "context"

// Store is the relational collaborator behind the engine. Implementations must
// execute each mutation as a single transaction and must enforce uniqueness at
// the schema level: the engine's behavior under concurrent writers depends on
// the store rejecting duplicate (user_id, role_id) and
// (role_id, permission_id) rows.
type Store interface {
	// HasPermission runs the set-membership check: does userID hold an
	// effective assignment to a role granted (resource, action)? An empty
	// organizationID leaves the check unscoped.
	HasPermission(ctx context.Context, userID, resource, action, organizationID string) (bool, error)

	// PermissionsForUser returns the distinct permissions reachable through
	// the user's effective assignments, ordered by (resource, action).
	PermissionsForUser(ctx context.Context, userID string) ([]Permission, error)

	// RolesForUser returns roles with an active assignment for the user,
	// irrespective of expiry.
	RolesForUser(ctx context.Context, userID string) ([]Role, error)

	// UpsertAssignment reactivates an existing (user, role) row in place or
	// inserts a new one. A concurrent first-time insert losing to the unique
	// index must be retried as an update, not surfaced as a failure.
	UpsertAssignment(ctx context.Context, a Assignment) error

	// DeactivateAssignment flips is_active off; no-op when the row is absent.
	DeactivateAssignment(ctx context.Context, userID, roleID string) error

	// InsertRole persists a new role. Duplicate (name, organization_id) maps
	// to ErrConflict.
	InsertRole(ctx context.Context, role *Role) error

	// FindRoleByName looks a role up by name within an organization (empty
	// organizationID means system scope). Returns ErrNotFound when absent.
	FindRoleByName(ctx context.Context, name, organizationID string) (*Role, error)

	// EnsureGrant records a role→permission grant; succeeds without writing
	// when the grant already exists.
	EnsureGrant(ctx context.Context, g Grant) error

	// ListPermissions returns the whole catalog ordered by (resource, action).
	ListPermissions(ctx context.Context) ([]Permission, error)

	// ListRoles returns roles for the organization unioned with system-wide
	// roles, or every role when organizationID is empty. Ordered by name.
	ListRoles(ctx context.Context, organizationID string) ([]Role, error)

	// EnsurePermissions inserts any catalog entries that do not exist yet.
	EnsurePermissions(ctx context.Context, perms []Permission) error
}

// BootstrapStore carries the provisioning writes used by the administrative
// CLI. Organization and user lifecycle is otherwise an external concern.
type BootstrapStore interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	CreateUser(ctx context.Context, user *User) error
}
