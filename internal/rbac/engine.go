package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"accesscore.io/internal/obs"
)

// Engine answers permission checks and administers assignments and grants.
// Decision-time reads are fail-closed: a store failure is logged, counted, and
// reported as a deny (or an empty list), never as an error to the caller.
// Mutations return errors from the taxonomy in errors.go; the store guarantees
// rollback, so a failed write means "not applied".
type Engine struct {
	store Store
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store Store) (*Engine, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	return &Engine{store: store}, nil
}

// CheckPermission reports whether the user holds an effective assignment to a
// role granted (resource, action). When organizationID is non-empty the match
// additionally requires the user's own organization to equal organizationID,
// or the matching role to be system-wide.
func (e *Engine) CheckPermission(ctx context.Context, userID, resource, action, organizationID string) bool {
	userID = strings.TrimSpace(userID)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if userID == "" || resource == "" || action == "" {
		obs.LogEvent(map[string]any{
			"level": "warn", "component": "rbac", "op": "check_permission",
			"msg": "malformed check denied", "user_id": userID, "resource": resource, "action": action,
		})
		obs.ObservePermissionCheck(false, 0)
		return false
	}

	start := time.Now()
	allowed, err := e.store.HasPermission(ctx, userID, resource, action, strings.TrimSpace(organizationID))
	if err != nil {
		e.storeFailure("check_permission", err, map[string]any{
			"user_id": userID, "resource": resource, "action": action,
		})
		obs.ObservePermissionCheck(false, time.Since(start).Seconds())
		return false
	}
	obs.ObservePermissionCheck(allowed, time.Since(start).Seconds())
	return allowed
}

// GetUserPermissions returns the distinct permissions reachable through the
// user's effective assignments. This is a self-introspection view; no
// organization scoping is applied.
func (e *Engine) GetUserPermissions(ctx context.Context, userID string) []Permission {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	perms, err := e.store.PermissionsForUser(ctx, userID)
	if err != nil {
		e.storeFailure("get_user_permissions", err, map[string]any{"user_id": userID})
		return nil
	}
	return perms
}

// GetUserRoles returns roles with an active assignment for the user. Expiry is
// deliberately not consulted here; the role-name gates build on this looser
// view and must stay distinct from CheckPermission.
func (e *Engine) GetUserRoles(ctx context.Context, userID string) []Role {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	roles, err := e.store.RolesForUser(ctx, userID)
	if err != nil {
		e.storeFailure("get_user_roles", err, map[string]any{"user_id": userID})
		return nil
	}
	return roles
}

// AssignRole grants roleID to userID. Reassigning an existing pair reactivates
// the row and overwrites expires_at and assigned_by instead of inserting a
// duplicate.
func (e *Engine) AssignRole(ctx context.Context, userID, roleID, assignedBy string, expiresAt *time.Time) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return e.store.UpsertAssignment(ctx, Assignment{
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: strings.TrimSpace(assignedBy),
		AssignedAt: time.Now().UTC(),
		ExpiresAt:  expiresAt,
		IsActive:   true,
	})
}

// RevokeRole deactivates the (user, role) assignment. Revoking an absent or
// already-revoked assignment succeeds.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return e.store.DeactivateAssignment(ctx, userID, roleID)
}

// CreateRoleInput carries the administrative role-creation payload.
type CreateRoleInput struct {
	Name           string
	Description    string
	OrganizationID string
	CreatedBy      string
	IsSystemRole   bool
}

// CreateRole persists one of the two whitelisted roles. The whitelist, not the
// caller, determines system scope: super-admin is always system-wide and
// org-admin never is, whatever IsSystemRole was passed.
func (e *Engine) CreateRole(ctx context.Context, input CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if !allowedRoleName(name) {
		return nil, fmt.Errorf("%w: %q", ErrRoleNameNotAllowed, name)
	}
	role := &Role{
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		IsSystemRole:   name == RoleSuperAdmin,
		OrganizationID: strings.TrimSpace(input.OrganizationID),
		CreatedBy:      strings.TrimSpace(input.CreatedBy),
	}
	if err := e.store.InsertRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// AssignPermissionToRole links a permission to a role. Granting an existing
// pair succeeds without writing a duplicate row.
func (e *Engine) AssignPermissionToRole(ctx context.Context, roleID, permissionID, grantedBy string) error {
	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role_id and permission_id are required", ErrInvalidInput)
	}
	return e.store.EnsureGrant(ctx, Grant{
		RoleID:       roleID,
		PermissionID: permissionID,
		GrantedBy:    strings.TrimSpace(grantedBy),
		GrantedAt:    time.Now().UTC(),
	})
}

// GetAllPermissions returns the permission catalog ordered by (resource, action).
func (e *Engine) GetAllPermissions(ctx context.Context) []Permission {
	perms, err := e.store.ListPermissions(ctx)
	if err != nil {
		e.storeFailure("get_all_permissions", err, nil)
		return nil
	}
	return perms
}

// GetAllRoles returns roles visible to an organization: its own plus every
// system-wide role. With an empty organizationID all roles are returned.
func (e *Engine) GetAllRoles(ctx context.Context, organizationID string) []Role {
	roles, err := e.store.ListRoles(ctx, strings.TrimSpace(organizationID))
	if err != nil {
		e.storeFailure("get_all_roles", err, map[string]any{"organization_id": organizationID})
		return nil
	}
	return roles
}

// SeedDefaultRoles ensures the two whitelisted roles exist. Safe to re-run; a
// concurrent seeder losing the insert race is treated as success.
func (e *Engine) SeedDefaultRoles(ctx context.Context) error {
	for _, def := range DefaultRoles {
		_, err := e.store.FindRoleByName(ctx, def.Name, "")
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		role := def
		if err := e.store.InsertRole(ctx, &role); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return nil
}

// SeedPermissionCatalog inserts any builtin permissions missing from the store.
func (e *Engine) SeedPermissionCatalog(ctx context.Context) error {
	return e.store.EnsurePermissions(ctx, BuiltinPermissions)
}

func (e *Engine) storeFailure(op string, err error, fields map[string]any) {
	entry := map[string]any{
		"level":     "error",
		"component": "rbac",
		"op":        op,
		"error":     err.Error(),
	}
	for k, v := range fields {
		entry[k] = v
	}
	obs.LogEvent(entry)
	obs.StoreFailure(op)
}
