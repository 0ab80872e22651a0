package authflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsNilIsInert(t *testing.T) {
	var m *Metrics
	m.Inc(MetricResetStart)
	m.Observe(MetricServiceLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricResetStart); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricResetVerifyFailure)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricResetVerifyFailure); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramSlotsAndSum(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	var total time.Duration
	for _, bound := range LatencyBuckets {
		m.Observe(MetricServiceLatency, bound)
		total += bound
	}
	m.Observe(MetricServiceLatency, 700*time.Millisecond)
	total += 700 * time.Millisecond
	// counters have no histogram
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	slots := snap.Histograms[MetricServiceLatency]
	if len(slots) != len(LatencyBuckets)+1 {
		t.Fatalf("expected %d slots, got %d", len(LatencyBuckets)+1, len(slots))
	}
	for i, v := range slots {
		if v != 1 {
			t.Fatalf("slot %d expected 1, got %d", i, v)
		}
	}
	if got := snap.LatencySum[MetricServiceLatency]; got != total {
		t.Fatalf("sum = %v, want %v", got, total)
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for a counter id")
	}
}

func TestLatencySlotBoundsAreInclusive(t *testing.T) {
	cases := []struct {
		d    time.Duration
		slot int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + time.Microsecond, 1},
		{499 * time.Millisecond, 6},
		{500*time.Millisecond + 1, 7},
		{time.Hour, 7},
	}
	for _, tc := range cases {
		if got := latencySlot(tc.d); got != tc.slot {
			t.Errorf("latencySlot(%v) = %d, want %d", tc.d, got, tc.slot)
		}
	}
}

func TestMetricsHistogramsRequireLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricServiceLatency, 3*time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricServiceLatency]; ok {
		t.Fatal("histogram must be absent without EnableLatencyHistograms")
	}
}

func TestEngineCountsResetMetrics(t *testing.T) {
	engine, _ := newResetEngine(t, DefaultConfig())
	ctx := context.Background()
	rc := engine.PasswordReset()

	if _, err := rc.StartReset(ctx, "  "); err == nil {
		t.Fatal("expected blank email rejection")
	}
	ticket, err := rc.StartReset(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("StartReset: %v", err)
	}
	rc.VerifyCode(ctx, wrongCode(ticket.Code))
	rc.VerifyCode(ctx, ticket.Code)
	_ = rc.FinishReset(ctx, "short")
	if err := rc.FinishReset(ctx, "Passw0rd"); err != nil {
		t.Fatalf("FinishReset: %v", err)
	}

	snap := engine.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricResetStart:         1,
		MetricResetStartRejected: 1,
		MetricResetVerifySuccess: 1,
		MetricResetVerifyFailure: 1,
		MetricResetFinishSuccess: 1,
		MetricResetFinishFailure: 1,
	}
	for id, v := range want {
		if snap.Counters[id] != v {
			t.Fatalf("metric %d: expected %d, got %d", id, v, snap.Counters[id])
		}
	}
}
