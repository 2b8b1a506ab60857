// Package masking redacts sensitive values from arbitrary nested data
// before it is logged or persisted. A merged ruleset (built-in defaults
// plus an optional JSON file) maps field-name patterns to the categories
// authentication, pii, and security; any value whose field name matches a
// pattern is replaced by a fixed marker, subtree included.
//
// Masking fails closed: cycles, unsupported types, pathological depth, and
// internal panics all resolve to redacting more, never to emitting
// unmasked data.
package masking
