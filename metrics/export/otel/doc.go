// Package otel bridges statelessauth Engine metrics into an OpenTelemetry
// Meter.
//
// Counters become Int64ObservableCounter instruments with the same names the
// Prometheus exporter uses. The login and authenticate latency histograms are
// published as cumulative gauges, one per bucket bound plus a _count gauge,
// because the Engine keeps fixed buckets rather than raw samples.
//
// The caller owns the MeterProvider; Close only drops the callback.
package otel
