package goCtrl

import "sync/atomic"

// MetricID indexes one internal counter.
type MetricID uint16

const (
	// MetricCredentialRefreshSuccess counts completed credential refreshes.
	MetricCredentialRefreshSuccess MetricID = iota
	// MetricCredentialRefreshFailure counts failed credential refreshes.
	MetricCredentialRefreshFailure
	// MetricCredentialInvalidated counts explicit credential invalidations.
	MetricCredentialInvalidated
	// MetricTransportRetry counts forced-refresh retries after an
	// authentication rejection.
	MetricTransportRetry
	// MetricCacheHit counts authorization lookups served from Redis.
	MetricCacheHit
	// MetricCacheMiss counts lookups that fell through to the controller.
	MetricCacheMiss
	// MetricCachePassThrough counts lookups routed around an unavailable
	// store.
	MetricCachePassThrough
	// MetricAuditEmitted counts audit records handed to the dispatcher.
	MetricAuditEmitted
	// MetricAuditExcluded counts calls skipped by the audit loop guard.
	MetricAuditExcluded
	// MetricMaskingFallback counts values resolved by over-redaction.
	MetricMaskingFallback

	metricCount
)

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// metricSet is the lock-free counter array shared across the client's
// components. Increments are atomic adds; a disabled set is a no-op.
type metricSet struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

func (m *metricSet) inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

func (m *metricSet) snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out.Counters[id] = m.counters[id].Load()
	}
	return out
}
