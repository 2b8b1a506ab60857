package internaldefs

import (
	goCtrl "github.com/MrEthical07/goCtrl"
)

// CounterDef binds a MetricID to its exposition name and help text.
type CounterDef struct {
	ID   goCtrl.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goCtrl.MetricCredentialRefreshSuccess, Name: "goctrl_credential_refresh_success_total", Help: "Completed credential refreshes."},
	{ID: goCtrl.MetricCredentialRefreshFailure, Name: "goctrl_credential_refresh_failure_total", Help: "Failed credential refreshes."},
	{ID: goCtrl.MetricCredentialInvalidated, Name: "goctrl_credential_invalidated_total", Help: "Explicit credential invalidations."},
	{ID: goCtrl.MetricTransportRetry, Name: "goctrl_transport_retry_total", Help: "Forced-refresh retries after authentication rejections."},
	{ID: goCtrl.MetricCacheHit, Name: "goctrl_cache_hit_total", Help: "Authorization lookups served from the cache."},
	{ID: goCtrl.MetricCacheMiss, Name: "goctrl_cache_miss_total", Help: "Authorization lookups loaded from the controller."},
	{ID: goCtrl.MetricCachePassThrough, Name: "goctrl_cache_pass_through_total", Help: "Authorization lookups routed around an unavailable store."},
	{ID: goCtrl.MetricAuditEmitted, Name: "goctrl_audit_emitted_total", Help: "Audit records handed to the dispatcher."},
	{ID: goCtrl.MetricAuditExcluded, Name: "goctrl_audit_excluded_total", Help: "Calls skipped by the audit loop guard."},
	{ID: goCtrl.MetricMaskingFallback, Name: "goctrl_masking_fallback_total", Help: "Masking operations resolved by over-redaction."},
}

// AuditDroppedDef describes the dispatcher's drop counter, which lives
// outside the regular counter array.
var AuditDroppedDef = CounterDef{
	Name: "goctrl_audit_dropped_total",
	Help: "Audit records dropped because the dispatcher buffer was full.",
}
