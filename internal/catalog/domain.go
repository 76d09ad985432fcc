package catalog

import (
	"strings"
	"time"
)

// GeneralModule is the module assigned to bare permission names that carry
// no "module.action" dot separator.
const GeneralModule = "general"

// Permission represents an atomic capability named "module.action".
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	GuardName   string `json:"guard_name"`
	Description string `json:"description"`
}

// Role represents a named bundle of default permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name" validate:"required"`
	GuardName   string       `json:"guard_name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// SystemRoles are protected from edits and deletion through the
// administrative surface. The resolution engine still evaluates them
// like any other role.
var SystemRoles = map[string]struct{}{
	"admin":       {},
	"super-admin": {},
	"system":      {},
}

// IsSystemRole reports whether the named role is protected.
func IsSystemRole(name string) bool {
	_, ok := SystemRoles[name]
	return ok
}

// Module returns the module prefix of a permission name: the text before the
// first dot. A bare word belongs to the "general" module.
func Module(name string) string {
	if mod, _, ok := strings.Cut(name, "."); ok {
		return mod
	}
	return GeneralModule
}

// Action returns the action part of a permission name, or the empty string
// for a bare word.
func Action(name string) string {
	if _, action, ok := strings.Cut(name, "."); ok {
		return action
	}
	return ""
}

// PermissionName joins a module and action into a permission name.
func PermissionName(module, action string) string {
	return module + "." + action
}

// Snapshot is an immutable view of the role/permission catalog as fetched
// from the upstream backend. All lookups are case-sensitive exact matches.
type Snapshot struct {
	Roles       []Role
	Permissions []Permission
	LoadedAt    time.Time

	rolePerms map[string][]string
}

// NewSnapshot builds a snapshot, precomputing the role to permission-name
// mapping. Duplicate permission names within a role are dropped, first
// occurrence wins, so the per-role list stays ordered and duplicate-free.
func NewSnapshot(roles []Role, permissions []Permission, loadedAt time.Time) *Snapshot {
	rolePerms := make(map[string][]string, len(roles))
	for _, role := range roles {
		seen := make(map[string]struct{}, len(role.Permissions))
		names := make([]string, 0, len(role.Permissions))
		for _, perm := range role.Permissions {
			if perm.Name == "" {
				continue
			}
			if _, dup := seen[perm.Name]; dup {
				continue
			}
			seen[perm.Name] = struct{}{}
			names = append(names, perm.Name)
		}
		rolePerms[role.Name] = names
	}
	return &Snapshot{
		Roles:       roles,
		Permissions: permissions,
		LoadedAt:    loadedAt,
		rolePerms:   rolePerms,
	}
}

// PermissionsForRole returns the ordered permission names granted by the
// named role. An unknown role resolves to an empty list, never an error.
func (s *Snapshot) PermissionsForRole(name string) []string {
	if s == nil {
		return nil
	}
	perms := s.rolePerms[name]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasRole reports whether the role exists in the catalog.
func (s *Snapshot) HasRole(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.rolePerms[name]
	return ok
}

// FindRole returns the role record by name.
func (s *Snapshot) FindRole(name string) (Role, bool) {
	if s == nil {
		return Role{}, false
	}
	for _, role := range s.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}
