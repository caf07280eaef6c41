package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"accesscore.io/internal/ids"
	"accesscore.io/internal/rbac"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// HasPermission runs the single set-membership query across users, user_roles,
// roles, role_permissions and permissions. The organization predicate compares
// the user's own organization to the supplied id, not the role's, or admits
// the row when the role is system-wide. That asymmetry is the documented
// contract; do not "fix" it here.
func (s *Store) HasPermission(ctx context.Context, userID, resource, action, organizationID string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*)
		from users u
		join user_roles ur on ur.user_id = u.id
		join roles r on r.id = ur.role_id
		join role_permissions rp on rp.role_id = r.id
		join permissions p on p.id = rp.permission_id
		where u.id = $1
		  and p.resource = $2
		  and p.action = $3
		  and u.is_active = true
		  and ur.is_active = true
		  and (ur.expires_at is null or ur.expires_at > now())
		  and ($4::text is null or u.organization_id = $4 or r.is_system_role = true)
	`, userID, resource, action, nullIfEmpty(organizationID)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) PermissionsForUser(ctx context.Context, userID string) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id, p.name, p.description, p.resource, p.action, p.created_at
		from users u
		join user_roles ur on ur.user_id = u.id
		join roles r on r.id = ur.role_id
		join role_permissions rp on rp.role_id = r.id
		join permissions p on p.id = rp.permission_id
		where u.id = $1
		  and u.is_active = true
		  and ur.is_active = true
		  and (ur.expires_at is null or ur.expires_at > now())
		order by p.resource, p.action
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// RolesForUser filters on is_active only. Expiry is intentionally not
// consulted: the name-based administrative gates depend on this looser view.
func (s *Store) RolesForUser(ctx context.Context, userID string) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_system_role, r.organization_id, r.created_at, r.created_by
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1 and ur.is_active = true
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

// UpsertAssignment reactivates the existing (user, role) row or inserts a new
// one, inside a single transaction. The existence check and the insert are not
// atomic with respect to other writers; when two first-time assigners race,
// the unique index picks a winner and the loser converges by updating the
// winner's row.
func (s *Store) UpsertAssignment(ctx context.Context, a rbac.Assignment) error {
	err := s.tryUpsertAssignment(ctx, a)
	if errors.Is(err, rbac.ErrConflict) {
		return s.updateAssignment(ctx, a)
	}
	return err
}

func (s *Store) tryUpsertAssignment(ctx context.Context, a rbac.Assignment) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		select id from user_roles where user_id = $1 and role_id = $2
	`, a.UserID, a.RoleID).Scan(&existing)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `
			update user_roles
			set is_active = true, expires_at = $3, assigned_by = $4
			where user_id = $1 and role_id = $2
		`, a.UserID, a.RoleID, a.ExpiresAt, nullIfEmpty(a.AssignedBy)); err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (id, user_id, role_id, assigned_by, assigned_at, expires_at, is_active)
			values ($1, $2, $3, $4, $5, $6, true)
		`, ids.New(), a.UserID, a.RoleID, nullIfEmpty(a.AssignedBy), a.AssignedAt, a.ExpiresAt); err != nil {
			if pgErr, ok := maybePgError(err); ok {
				switch pgErr.Code {
				case pgErrUniqueViolation:
					return rbac.ErrConflict
				case pgErrForeignKeyViolation:
					return fmt.Errorf("%w: user or role does not exist", rbac.ErrNotFound)
				}
			}
			return err
		}
	default:
		return err
	}
	return tx.Commit()
}

func (s *Store) updateAssignment(ctx context.Context, a rbac.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		update user_roles
		set is_active = true, expires_at = $3, assigned_by = $4
		where user_id = $1 and role_id = $2
	`, a.UserID, a.RoleID, a.ExpiresAt, nullIfEmpty(a.AssignedBy))
	return err
}

// DeactivateAssignment flips the row inactive; revoking an absent assignment
// affects zero rows and succeeds.
func (s *Store) DeactivateAssignment(ctx context.Context, userID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		update user_roles set is_active = false
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	return err
}

func (s *Store) InsertRole(ctx context.Context, role *rbac.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, is_system_role, organization_id, created_by)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, role.ID, role.Name, nullIfEmpty(role.Description), role.IsSystemRole,
		nullIfEmpty(role.OrganizationID), nullIfEmpty(role.CreatedBy)).Scan(&role.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: role %q already exists in this scope", rbac.ErrConflict, role.Name)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: organization or creator does not exist", rbac.ErrNotFound)
			}
		}
		return err
	}
	return nil
}

func (s *Store) FindRoleByName(ctx context.Context, name, organizationID string) (*rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, name, description, is_system_role, organization_id, created_at, created_by
		from roles
		where name = $1 and organization_id is null
	`
	args := []any{name}
	if organizationID != "" {
		query = `
			select id, name, description, is_system_role, organization_id, created_at, created_by
			from roles
			where name = $1 and organization_id = $2
		`
		args = append(args, organizationID)
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

// EnsureGrant is idempotent: an existing (role, permission) pair commits
// without a second row, and losing a concurrent insert race counts as success.
func (s *Store) EnsureGrant(ctx context.Context, g rbac.Grant) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `
		select id from role_permissions where role_id = $1 and permission_id = $2
	`, g.RoleID, g.PermissionID).Scan(&existing)
	if err == nil {
		return tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into role_permissions (id, role_id, permission_id, granted_by, granted_at)
		values ($1, $2, $3, $4, $5)
	`, ids.New(), g.RoleID, g.PermissionID, nullIfEmpty(g.GrantedBy), g.GrantedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return nil
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: role or permission does not exist", rbac.ErrNotFound)
			}
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, resource, action, created_at
		from permissions
		order by resource, action
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func (s *Store) ListRoles(ctx context.Context, organizationID string) ([]rbac.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, name, description, is_system_role, organization_id, created_at, created_by
		from roles
		order by name
	`
	args := []any{}
	if organizationID != "" {
		query = `
			select id, name, description, is_system_role, organization_id, created_at, created_by
			from roles
			where organization_id = $1 or is_system_role = true
			order by name
		`
		args = append(args, organizationID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (s *Store) EnsurePermissions(ctx context.Context, perms []rbac.Permission) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, name, description, resource, action)
			values ($1, $2, $3, $4, $5)
			on conflict do nothing
		`, ids.New(), p.Name, nullIfEmpty(p.Description), p.Resource, p.Action); err != nil {
			return fmt.Errorf("ensure permission %s.%s: %w", p.Resource, p.Action, err)
		}
	}
	return tx.Commit()
}

func (s *Store) CreateOrganization(ctx context.Context, org *rbac.Organization) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, slug, description, is_active, created_by)
		values ($1, $2, $3, $4, true, $5)
		returning created_at, updated_at
	`, org.ID, org.Name, org.Slug, nullIfEmpty(org.Description),
		nullIfEmpty(org.CreatedBy)).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: slug %q taken", rbac.ErrConflict, org.Slug)
		}
		return err
	}
	org.IsActive = true
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user *rbac.User) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if user.ID == "" {
		user.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, email, username, is_active, organization_id, created_by)
		values ($1, $2, $3, true, $4, $5)
		returning created_at, updated_at
	`, user.ID, user.Email, user.Username, nullIfEmpty(user.OrganizationID),
		nullIfEmpty(user.CreatedBy)).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return fmt.Errorf("%w: email or username taken", rbac.ErrConflict)
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: organization does not exist", rbac.ErrNotFound)
			}
		}
		return err
	}
	user.IsActive = true
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(r rowScanner) (*rbac.Role, error) {
	var (
		role      rbac.Role
		desc      sql.NullString
		orgID     sql.NullString
		createdBy sql.NullString
	)
	if err := r.Scan(&role.ID, &role.Name, &desc, &role.IsSystemRole, &orgID, &role.CreatedAt, &createdBy); err != nil {
		return nil, err
	}
	role.Description = desc.String
	role.OrganizationID = orgID.String
	role.CreatedBy = createdBy.String
	return &role, nil
}

func scanRoles(rows *sql.Rows) ([]rbac.Role, error) {
	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func scanPermissions(rows *sql.Rows) ([]rbac.Permission, error) {
	var perms []rbac.Permission
	for rows.Next() {
		var (
			p    rbac.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.Resource, &p.Action, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
