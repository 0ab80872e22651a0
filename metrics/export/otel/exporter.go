package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authflow.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authflow.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram mirrors the Prometheus layout: cumulative buckets keyed
// by an "le" attribute, plus count and sum.
type observedHistogram struct {
	id      authflow.MetricID
	buckets metric.Int64ObservableCounter
	count   metric.Int64ObservableCounter
	sum     metric.Float64ObservableCounter
}

// Exporter publishes engine metrics through observable instruments. One
// callback reads a single snapshot per collection cycle.
type Exporter struct {
	source       metricsSource
	counters     []observedCounter
	histograms   []observedHistogram
	auditDropped metric.Int64ObservableCounter
	le           []metric.ObserveOption
	registration metric.Registration
}

func New(meter metric.Meter, engine *authflow.Engine) (*Exporter, error) {
	return NewFromSource(meter, engine)
}

func NewFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	for _, label := range internaldefs.BucketLabels() {
		e.le = append(e.le, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", label))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count, h.sum)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}
	var err error

	if h.buckets, err = meter.Int64ObservableCounter(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound.")); err != nil {
		return h, fmt.Errorf("histogram %s buckets: %w", def.Name, err)
	}
	if h.count, err = meter.Int64ObservableCounter(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count.")); err != nil {
		return h, fmt.Errorf("histogram %s count: %w", def.Name, err)
	}
	if h.sum, err = meter.Float64ObservableCounter(def.Name+"_sum",
		metric.WithDescription(def.Help+" Total seconds."), metric.WithUnit("s")); err != nil {
		return h, fmt.Errorf("histogram %s sum: %w", def.Name, err)
	}
	return h, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.Cumulative(snapshot.Histograms[h.id])
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), e.le[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(h.sum, snapshot.LatencySum[h.id].Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay with the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
