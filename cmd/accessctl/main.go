package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"accesscore.io/internal/audit"
	"accesscore.io/internal/ids"
	"accesscore.io/internal/obs"
	"accesscore.io/internal/rbac"
	"accesscore.io/internal/store/pg"
)

const usage = `usage: accessctl <command> [flags]

commands:
  seed         ensure the builtin permission catalog and default roles exist
  check        -user -resource -action [-org]      evaluate a permission
  assign       -user -role -by [-expires RFC3339]  assign a role to a user
  revoke       -user -role                         revoke a role from a user
  create-role  -name [-desc] [-org] -by [-system]  create a whitelisted role
  grant        -role -perm -by                     grant a permission to a role
  permissions  -user                               list a user's effective permissions
  roles        -user                               list a user's active roles
  catalog      [-org]                              list all permissions and visible roles
  org-create   -name -slug [-desc] [-by]           provision an organization
  user-create  -email -username [-org] [-by]       provision a user

The store DSN comes from -dsn or ACCESSCORE_PG_DSN.`

func main() {
	log.SetFlags(0)
	obs.Init()

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var (
		dsn      = fs.String("dsn", os.Getenv("ACCESSCORE_PG_DSN"), "PostgreSQL DSN")
		userID   = fs.String("user", "", "user id")
		roleID   = fs.String("role", "", "role id")
		permID   = fs.String("perm", "", "permission id")
		orgID    = fs.String("org", "", "organization id")
		actorID  = fs.String("by", "", "acting administrator user id")
		resource = fs.String("resource", "", "resource key")
		action   = fs.String("action", "", "action key")
		name     = fs.String("name", "", "name")
		slug     = fs.String("slug", "", "organization slug")
		desc     = fs.String("desc", "", "description")
		email    = fs.String("email", "", "email address")
		username = fs.String("username", "", "username")
		system   = fs.Bool("system", false, "request a system-wide role (the whitelist has the final say)")
		expires  = fs.String("expires", "", "assignment expiry, RFC3339")
	)
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatal(err)
	}
	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or ACCESSCORE_PG_DSN")
	}

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	engine, err := rbac.NewEngine(store)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = audit.WithRequestID(ctx, uuid.NewString())
	if *actorID != "" {
		ctx = rbac.ContextWithPrincipal(ctx, rbac.Principal{UserID: *actorID})
	}

	var expiresAt *time.Time
	if *expires != "" {
		parsed, err := time.Parse(time.RFC3339, *expires)
		if err != nil {
			log.Fatalf("parse -expires: %v", err)
		}
		expiresAt = &parsed
	}

	switch command {
	case "seed":
		if err := engine.SeedPermissionCatalog(ctx); err != nil {
			log.Fatalf("seed permissions: %v", err)
		}
		if err := engine.SeedDefaultRoles(ctx); err != nil {
			log.Fatalf("seed roles: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.seed", nil)
		fmt.Println("catalog and default roles seeded")

	case "check":
		requireID(userID, "user")
		if *resource == "" || *action == "" {
			log.Fatal("check requires -resource and -action")
		}
		allowed := engine.CheckPermission(ctx, *userID, *resource, *action, *orgID)
		fmt.Printf("%s.%s -> %v\n", *resource, *action, allowed)
		if !allowed {
			os.Exit(1)
		}

	case "assign":
		requireID(userID, "user")
		requireID(roleID, "role")
		if err := engine.AssignRole(ctx, *userID, *roleID, *actorID, expiresAt); err != nil {
			log.Fatalf("assign: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.role.assign", map[string]any{"user_id": *userID, "role_id": *roleID})
		fmt.Println("assigned")

	case "revoke":
		requireID(userID, "user")
		requireID(roleID, "role")
		if err := engine.RevokeRole(ctx, *userID, *roleID); err != nil {
			log.Fatalf("revoke: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.role.revoke", map[string]any{"user_id": *userID, "role_id": *roleID})
		fmt.Println("revoked")

	case "create-role":
		role, err := engine.CreateRole(ctx, rbac.CreateRoleInput{
			Name:           *name,
			Description:    *desc,
			OrganizationID: *orgID,
			CreatedBy:      *actorID,
			IsSystemRole:   *system,
		})
		if err != nil {
			log.Fatalf("create-role: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.role.create", map[string]any{"role_id": role.ID, "name": role.Name})
		printJSON(role)

	case "grant":
		requireID(roleID, "role")
		requireID(permID, "perm")
		if err := engine.AssignPermissionToRole(ctx, *roleID, *permID, *actorID); err != nil {
			log.Fatalf("grant: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.role.grant", map[string]any{"role_id": *roleID, "permission_id": *permID})
		fmt.Println("granted")

	case "permissions":
		requireID(userID, "user")
		printJSON(engine.GetUserPermissions(ctx, *userID))

	case "roles":
		requireID(userID, "user")
		printJSON(engine.GetUserRoles(ctx, *userID))

	case "catalog":
		printJSON(map[string]any{
			"permissions": engine.GetAllPermissions(ctx),
			"roles":       engine.GetAllRoles(ctx, *orgID),
		})

	case "org-create":
		if *name == "" || *slug == "" {
			log.Fatal("org-create requires -name and -slug")
		}
		org := &rbac.Organization{Name: *name, Slug: *slug, Description: *desc, CreatedBy: *actorID}
		if err := store.CreateOrganization(ctx, org); err != nil {
			log.Fatalf("org-create: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.organization.create", map[string]any{"organization_id": org.ID, "slug": org.Slug})
		printJSON(org)

	case "user-create":
		if *email == "" || *username == "" {
			log.Fatal("user-create requires -email and -username")
		}
		user := &rbac.User{Email: *email, Username: *username, OrganizationID: *orgID, CreatedBy: *actorID}
		if err := store.CreateUser(ctx, user); err != nil {
			log.Fatalf("user-create: %v", err)
		}
		_ = audit.LogEvent(ctx, "rbac.user.create", map[string]any{"user_id": user.ID, "username": user.Username})
		printJSON(user)

	default:
		log.Fatal(usage)
	}
}

func requireID(value *string, flagName string) {
	if *value == "" {
		log.Fatalf("-%s is required", flagName)
	}
	if !ids.Valid(*value) {
		log.Fatalf("-%s: %q is not a valid identifier", flagName, *value)
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(data))
}
