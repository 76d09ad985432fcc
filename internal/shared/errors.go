package shared

import "errors"

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCatalogUnavailable indicates the upstream role/permission catalog
	// could not be fetched. Resolution fails closed while it is in effect.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrOverrideSync indicates an override mutation was applied locally but
	// could not be persisted upstream.
	ErrOverrideSync = errors.New("override persistence failed")
	// ErrSystemRole indicates an attempt to edit or delete a protected role.
	ErrSystemRole = errors.New("system role cannot be modified")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
