package rbac

import "errors"

var (
	ErrInvalidInput       = errors.New("rbac: invalid input")
	ErrNotFound           = errors.New("rbac: not found")
	ErrConflict           = errors.New("rbac: resource conflict")
	ErrRoleNameNotAllowed = errors.New("rbac: role name not allowed")
	ErrPermissionDenied   = errors.New("rbac: permission denied")
)
