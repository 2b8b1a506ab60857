// Package authcache is the cache-aside layer for role and permission
// lookups. Lookups check Redis first and fall back to the controller on a
// miss, populating the cache with a TTL (default 15 minutes). When Redis is
// unreachable the cache degrades to pass-through: every lookup goes to the
// controller, no error reaches the application, and no retry is made
// against the store for that call.
//
// Membership checks (Has, HasAny, HasAll) are pure set operations over an
// already-fetched payload and never touch the network.
package authcache
