package auth

import (
	"sort"
	"strings"
)

// Principal is a user together with the capabilities resolved from its roles.
// Resolution is additive: there are no deny rules.
type Principal struct {
	User        *User
	Roles       map[string]struct{}
	Permissions map[string]struct{}
}

// NewPrincipal resolves the permission set of u from its already loaded
// roles. It performs no I/O. Inactive roles and inactive permissions grant
// nothing.
func NewPrincipal(u *User) Principal {
	p := Principal{
		User:        u,
		Roles:       make(map[string]struct{}),
		Permissions: make(map[string]struct{}),
	}
	if u == nil {
		return p
	}
	for _, role := range u.Roles {
		if !role.IsActive {
			continue
		}
		p.Roles[role.Name] = struct{}{}
		for _, perm := range role.Permissions {
			if !perm.IsActive {
				continue
			}
			p.Permissions[perm.Name] = struct{}{}
		}
	}
	return p
}

// ResolvePermissions returns the deduplicated, sorted permission names of u.
func ResolvePermissions(u *User) []string {
	return sortedKeys(NewPrincipal(u).Permissions)
}

// HasPermission reports whether the principal holds the permission named name.
func (p Principal) HasPermission(name string) bool {
	_, ok := p.Permissions[strings.TrimSpace(name)]
	return ok
}

// HasRole reports whether the principal holds the role named name.
func (p Principal) HasRole(name string) bool {
	_, ok := p.Roles[strings.TrimSpace(name)]
	return ok
}

// HasAnyRole is true when at least one of names is held. An empty list is satisfied.
func (p Principal) HasAnyRole(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if p.HasRole(n) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true when every one of names is held.
func (p Principal) HasAllPermissions(names ...string) bool {
	for _, n := range names {
		if !p.HasPermission(n) {
			return false
		}
	}
	return true
}

// UserID returns the principal's subject id or "".
func (p Principal) UserID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

// RoleNames returns sorted role names.
func (p Principal) RoleNames() []string { return sortedKeys(p.Roles) }

// PermissionNames returns sorted permission names.
func (p Principal) PermissionNames() []string { return sortedKeys(p.Permissions) }

// Requirement describes what a route demands of the caller. Roles are
// alternatives (any one suffices); Permissions are cumulative (all needed).
type Requirement struct {
	Public      bool
	Roles       []string
	Permissions []string
}

// Authorize checks the requirement against p and returns ErrForbidden on failure.
func (r Requirement) Authorize(p Principal) error {
	if r.Public {
		return nil
	}
	if !p.HasAnyRole(r.Roles...) {
		return ErrForbidden
	}
	if !p.HasAllPermissions(r.Permissions...) {
		return ErrForbidden
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
