// Package goCtrl is the Go client SDK for the controller authorization
// backend. It manages the client-credential lifecycle (fetch, proactive
// refresh, single-flight concurrency, invalidation on rejection), caches
// role and permission lookups in Redis with TTL-based staleness, and emits
// compliance-grade audit records for every outbound call with recursive
// sensitive-data masking.
//
// The package is designed for concurrent server workloads: Client methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goCtrl is the public surface. It exposes [Client], [Builder], [Config],
// the audit sink types, and value types (MetricsSnapshot, UserInfo, etc.).
// Credential lifecycle, the authorization cache, and masking live in the
// credential, authcache, and masking sub-packages and are composed here.
//
// # What this package must NOT do
//
//   - Make authorization decisions locally. Policy lives in the remote
//     controller; the SDK only transports, caches, and audits.
//   - Let cache or logging failures change the outcome of an application
//     call. Both paths are absorbed internally.
//   - Block the caller's request path on audit delivery.
//
// # Failure asymmetry
//
// Caching fails open: an unreachable Redis degrades to pass-through and the
// controller is consulted directly. Masking fails closed: any problem while
// redacting resolves to more redaction, never less. The two policies are
// deliberately different and must stay that way.
package goCtrl
