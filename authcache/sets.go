package authcache

import "sort"

// RoleSet is the set of role names held by a scope. Membership checks are
// pure and never touch the network; fetch through Cache first.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from a name list.
func NewRoleSet(names []string) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership of a single role.
func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether at least one of names is present.
func (s RoleSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of names is present.
func (s RoleSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Values returns the sorted member list.
func (s RoleSet) Values() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PermissionSet is the set of permission names held by a scope. Same
// semantics as RoleSet.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a name list.
func NewPermissionSet(names []string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership of a single permission.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether at least one of names is present.
func (s PermissionSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of names is present.
func (s PermissionSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Values returns the sorted member list.
func (s PermissionSet) Values() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
