// Package resolve computes effective permission sets and answers point
// queries against them. Everything here is pure: callers supply snapshots of
// the catalog and override state, no I/O happens during evaluation.
package resolve

import (
	"sort"

	"github.com/akademos/akademos/internal/catalog"
)

// Set is an effective permission set: role-derived permissions plus custom
// grants, minus denials.
type Set map[string]struct{}

// Effective computes (rolePerms ∪ custom) − denied. Denial always wins over
// both the role grant and the custom grant; a custom grant needs no
// corresponding role entry.
func Effective(rolePerms, custom, denied []string) Set {
	set := make(Set, len(rolePerms)+len(custom))
	for _, name := range rolePerms {
		set[name] = struct{}{}
	}
	for _, name := range custom {
		set[name] = struct{}{}
	}
	for _, name := range denied {
		delete(set, name)
	}
	return set
}

// Has reports whether the set contains the exact permission name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether at least one of the names is in the set. An empty
// list yields false.
func (s Set) HasAny(names []string) bool {
	for _, name := range names {
		if s.Has(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether every name is in the set. An empty list is
// vacuously true.
func (s Set) HasAll(names []string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// CanAccess answers module-level queries. With an action it is equivalent to
// Has("module.action"); without one it reports whether the set holds at
// least one permission under the module prefix.
func (s Set) CanAccess(module, action string) bool {
	if action != "" {
		return s.Has(catalog.PermissionName(module, action))
	}
	for name := range s {
		if catalog.Module(name) == module {
			return true
		}
	}
	return false
}

// Names returns the sorted permission names in the set.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Modules returns the sorted distinct module prefixes present in the set.
func (s Set) Modules() []string {
	seen := make(map[string]struct{})
	for name := range s {
		seen[catalog.Module(name)] = struct{}{}
	}
	modules := make([]string, 0, len(seen))
	for mod := range seen {
		modules = append(modules, mod)
	}
	sort.Strings(modules)
	return modules
}
