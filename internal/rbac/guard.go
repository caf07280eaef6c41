package rbac

import (
	"context"
	"fmt"
)

// Call-site guards. These replace wrap-the-handler gating: the caller resolves
// its principal, names the capability it needs, and branches on the returned
// error. All of them deny on any uncertainty.

// PermissionRef names one (resource, action) capability.
type PermissionRef struct {
	Resource string
	Action   string
}

// RequirePermission checks the capability scoped by the principal's own
// organization.
func (e *Engine) RequirePermission(ctx context.Context, p Principal, resource, action string) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: principal required", ErrPermissionDenied)
	}
	if !e.CheckPermission(ctx, p.UserID, resource, action, p.OrganizationID) {
		return fmt.Errorf("%w: %s.%s", ErrPermissionDenied, resource, action)
	}
	return nil
}

// RequireAnyPermission succeeds when the principal holds at least one of the
// referenced capabilities.
func (e *Engine) RequireAnyPermission(ctx context.Context, p Principal, refs ...PermissionRef) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: principal required", ErrPermissionDenied)
	}
	for _, ref := range refs {
		if e.CheckPermission(ctx, p.UserID, ref.Resource, ref.Action, p.OrganizationID) {
			return nil
		}
	}
	return fmt.Errorf("%w: none of %d required capabilities held", ErrPermissionDenied, len(refs))
}

// RequireSystemAdmin checks (system, admin) without organization scoping.
func (e *Engine) RequireSystemAdmin(ctx context.Context, p Principal) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: principal required", ErrPermissionDenied)
	}
	if !e.CheckPermission(ctx, p.UserID, ResourceSystem, ActionAdmin, "") {
		return fmt.Errorf("%w: system administrator required", ErrPermissionDenied)
	}
	return nil
}

// RequireOrgAdmin is the name-based gate: it passes when the principal holds
// an active org-admin assignment, ignoring expiry. It is intentionally looser
// than RequirePermission and must not be folded into it.
func (e *Engine) RequireOrgAdmin(ctx context.Context, p Principal) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: principal required", ErrPermissionDenied)
	}
	for _, role := range e.GetUserRoles(ctx, p.UserID) {
		if role.Name == RoleOrgAdmin {
			return nil
		}
	}
	return fmt.Errorf("%w: organization administrator required", ErrPermissionDenied)
}

// RequireOrganizationAccess passes when the principal belongs to the named
// organization, or holds system administration rights.
func (e *Engine) RequireOrganizationAccess(ctx context.Context, p Principal, organizationID string) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: principal required", ErrPermissionDenied)
	}
	if organizationID == "" || p.OrganizationID == organizationID {
		return nil
	}
	if e.CheckPermission(ctx, p.UserID, ResourceSystem, ActionAdmin, "") {
		return nil
	}
	return fmt.Errorf("%w: organization mismatch", ErrPermissionDenied)
}
