// Package credential owns the client-credential lifecycle: lazy fetch,
// proactive single-flight refresh, invalidation on rejection, and
// stale-serve while a refresh is in flight or failing.
//
// A Store never returns an expired credential under normal network
// conditions. Refresh is requested once time-to-expiry drops below the
// refresh window (default 60s); the previous value keeps serving until the
// expiry buffer (default 30s before true expiry) so callers in that span
// never wait on the network.
package credential
