// Package otel publishes authflow counters and the service latency histogram
// as OpenTelemetry observable instruments.
//
// [New] registers one Int64ObservableCounter per counter. The histogram is a
// cumulative "_bucket" counter with an "le" attribute per upper bound, plus
// "_count" and "_sum" (seconds). Callers own the MeterProvider.
package otel
