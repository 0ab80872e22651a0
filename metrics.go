package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricLogout
	MetricResetStart
	MetricResetStartRejected
	MetricResetVerifySuccess
	MetricResetVerifyFailure
	MetricResetCodeExpired
	MetricResetFinishSuccess
	MetricResetFinishFailure
	// MetricServiceLatency is the only histogram: round trips to the
	// authentication service.
	MetricServiceLatency
	metricIDCount
)

// LatencyBuckets are the inclusive upper bounds of the service latency
// histogram. One extra slot counts slower calls.
var LatencyBuckets = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencySlots = len(LatencyBuckets) + 1

// counter occupies its own cache line so parallel operations on different
// ids do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

type latencyHistogram struct {
	slots    [latencySlots]atomic.Uint64
	sumNanos atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	h.slots[latencySlot(d)].Add(1)
	h.sumNanos.Add(int64(d))
}

func latencySlot(d time.Duration) int {
	for i, bound := range LatencyBuckets {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBuckets)
}

// Metrics holds lock-free counters and the service latency histogram.
// A nil or disabled *Metrics accepts every call and records nothing.
type Metrics struct {
	enabled  bool
	latency  bool
	counters [metricIDCount]counter
	service  latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histograms hold per-slot (not cumulative) counts, one per LatencyBuckets
// entry plus the overflow slot, and LatencySum their total observed time.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	LatencySum map[MetricID]time.Duration
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		LatencySum: map[MetricID]time.Duration{},
	}
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d for id. Only MetricServiceLatency has a histogram; other
// ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricServiceLatency {
		return
	}
	m.service.observe(d)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies current values. Reads are atomic per slot, not across slots.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := emptySnapshot()
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}

	if m.latency {
		slots := make([]uint64, latencySlots)
		for i := range slots {
			slots[i] = m.service.slots[i].Load()
		}
		s.Histograms[MetricServiceLatency] = slots
		s.LatencySum[MetricServiceLatency] = time.Duration(m.service.sumNanos.Load())
	}
	return s
}
