package sessionkit

import "sync/atomic"

// MetricID identifies one manager counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed logins, including role mismatches.
	MetricLoginFailure
	// MetricSignupSuccess counts successful registrations.
	MetricSignupSuccess
	// MetricSignupFailure counts failed registrations.
	MetricSignupFailure
	// MetricLogout counts logout calls, including idempotent repeats.
	MetricLogout
	// MetricProfileUpdate counts successful profile updates.
	MetricProfileUpdate
	// MetricReconcileConfirmed counts startups where the persisted
	// snapshot agreed with the backend.
	MetricReconcileConfirmed
	// MetricReconcileCorrected counts startups where the backend
	// overruled the persisted snapshot.
	MetricReconcileCorrected
	// MetricBackendRevocation counts spontaneous backend sign-outs.
	MetricBackendRevocation
	// MetricSessionPublished counts session-changed events published.
	MetricSessionPublished
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of atomic counters. A nil or disabled Metrics is
// safe to use and counts nothing.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a counter set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
