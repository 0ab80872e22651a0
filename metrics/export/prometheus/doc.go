// Package prometheus exposes authflow engine metrics as a
// prometheus.Collector.
//
// [NewCollector] reads [authflow.Engine.MetricsSnapshot] on every scrape and
// emits authflow_*_total counters, the authflow_service_latency_seconds
// histogram and authflow_audit_dropped_total. Register it on your own
// registry, or use [Handler] for a private one.
package prometheus
