package rbac

import (
	"context"
	"errors"
	"testing"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context must not carry a principal")
	}

	want := Principal{UserID: "u1", OrganizationID: "org1"}
	got, ok := PrincipalFromContext(ContextWithPrincipal(ctx, want))
	if !ok {
		t.Fatal("principal not recovered")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRequirePermissionScopesByPrincipalOrg(t *testing.T) {
	var gotOrg string
	engine := newTestEngine(t, &stubStore{
		hasPermissionFn: func(_ context.Context, _, _, _, organizationID string) (bool, error) {
			gotOrg = organizationID
			return true, nil
		},
	})

	p := Principal{UserID: "u1", OrganizationID: "org1"}
	if err := engine.RequirePermission(context.Background(), p, ResourceUsers, ActionRead); err != nil {
		t.Fatalf("RequirePermission: %v", err)
	}
	if gotOrg != "org1" {
		t.Fatalf("check not scoped to the principal's organization: %q", gotOrg)
	}
}

func TestRequirePermissionDenies(t *testing.T) {
	engine := newTestEngine(t, &stubStore{})

	err := engine.RequirePermission(context.Background(), Principal{UserID: "u1"}, ResourceUsers, ActionDelete)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	err = engine.RequirePermission(context.Background(), Principal{}, ResourceUsers, ActionRead)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("missing principal: expected ErrPermissionDenied, got %v", err)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	engine := newTestEngine(t, &stubStore{
		hasPermissionFn: func(_ context.Context, _, resource, action, _ string) (bool, error) {
			return resource == ResourceFiles && action == ActionRead, nil
		},
	})

	p := Principal{UserID: "u1"}
	err := engine.RequireAnyPermission(context.Background(), p,
		PermissionRef{ResourceUsers, ActionDelete},
		PermissionRef{ResourceFiles, ActionRead},
	)
	if err != nil {
		t.Fatalf("RequireAnyPermission: %v", err)
	}

	err = engine.RequireAnyPermission(context.Background(), p, PermissionRef{ResourceUsers, ActionDelete})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRequireSystemAdminIsUnscoped(t *testing.T) {
	var gotResource, gotAction, gotOrg string
	engine := newTestEngine(t, &stubStore{
		hasPermissionFn: func(_ context.Context, _, resource, action, organizationID string) (bool, error) {
			gotResource, gotAction, gotOrg = resource, action, organizationID
			return true, nil
		},
	})

	p := Principal{UserID: "u1", OrganizationID: "org1"}
	if err := engine.RequireSystemAdmin(context.Background(), p); err != nil {
		t.Fatalf("RequireSystemAdmin: %v", err)
	}
	if gotResource != ResourceSystem || gotAction != ActionAdmin {
		t.Fatalf("checked (%q, %q)", gotResource, gotAction)
	}
	if gotOrg != "" {
		t.Fatalf("system admin check must not be organization scoped, got %q", gotOrg)
	}
}

func TestRequireOrgAdminMatchesByRoleName(t *testing.T) {
	engine := newTestEngine(t, &stubStore{
		rolesForUser: func(_ context.Context, userID string) ([]Role, error) {
			if userID == "admin" {
				return []Role{{Name: "viewer"}, {Name: RoleOrgAdmin}}, nil
			}
			return []Role{{Name: "viewer"}}, nil
		},
	})

	if err := engine.RequireOrgAdmin(context.Background(), Principal{UserID: "admin"}); err != nil {
		t.Fatalf("RequireOrgAdmin: %v", err)
	}
	err := engine.RequireOrgAdmin(context.Background(), Principal{UserID: "u1"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRequireOrgAdminDeniesOnStoreError(t *testing.T) {
	engine := newTestEngine(t, &stubStore{
		rolesForUser: func(context.Context, string) ([]Role, error) {
			return nil, errors.New("connection refused")
		},
	})

	err := engine.RequireOrgAdmin(context.Background(), Principal{UserID: "u1"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("store error must read as deny, got %v", err)
	}
}

func TestRequireOrganizationAccess(t *testing.T) {
	engine := newTestEngine(t, &stubStore{
		hasPermissionFn: func(_ context.Context, userID, resource, action, _ string) (bool, error) {
			return userID == "root" && resource == ResourceSystem && action == ActionAdmin, nil
		},
	})

	member := Principal{UserID: "u1", OrganizationID: "org1"}
	if err := engine.RequireOrganizationAccess(context.Background(), member, "org1"); err != nil {
		t.Fatalf("same organization: %v", err)
	}
	if err := engine.RequireOrganizationAccess(context.Background(), member, ""); err != nil {
		t.Fatalf("unscoped target: %v", err)
	}
	err := engine.RequireOrganizationAccess(context.Background(), member, "org2")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("foreign organization: expected ErrPermissionDenied, got %v", err)
	}

	root := Principal{UserID: "root", OrganizationID: "org1"}
	if err := engine.RequireOrganizationAccess(context.Background(), root, "org2"); err != nil {
		t.Fatalf("system admin crossing organizations: %v", err)
	}
}
