package shared

import "errors"

var (
	// ErrNotFound indicates the entity id or name does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName indicates a uniqueness violation on create.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrForbidden indicates an operation disallowed by a protection flag.
	ErrForbidden = errors.New("forbidden")
	// ErrInUse indicates a delete blocked by existing references.
	ErrInUse = errors.New("resource in use")
	// ErrUnauthenticated indicates no actor is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotEditable indicates a role whose fields are locked for mutation.
	ErrNotEditable = errors.New("role not editable")
	// ErrSystemRole indicates a role protected from deletion.
	ErrSystemRole = errors.New("system role")
	// ErrValidation indicates malformed input rejected before reaching the core.
	ErrValidation = errors.New("validation failed")
)
