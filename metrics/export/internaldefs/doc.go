// Package internaldefs holds the metric names and help strings shared by the
// Prometheus and OTel exporters, and derives histogram bounds from
// authflow.LatencyBuckets, so both expose identical series for one engine.
package internaldefs
