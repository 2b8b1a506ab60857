package authcache

import "fmt"

// Scope identifies whose authorization data a cache entry holds. The three
// identifiers together form the cache key; two different scopes must never
// collide.
type Scope struct {
	UserID        string
	EnvironmentID string
	ApplicationID string
}

// key derives the deterministic cache key for s. Each segment is length
// prefixed, so no identifier alphabet can fake a delimiter: ("a:b","c")
// and ("a","b:c") always produce distinct keys.
func (s Scope) key(prefix, kind string) string {
	return fmt.Sprintf("%s:authz:%s:%d.%s:%d.%s:%d.%s",
		prefix, kind,
		len(s.UserID), s.UserID,
		len(s.EnvironmentID), s.EnvironmentID,
		len(s.ApplicationID), s.ApplicationID,
	)
}

const (
	kindRoles       = "roles"
	kindPermissions = "perms"
)
