// Package prometheus exports statelessauth Engine metrics through
// github.com/prometheus/client_golang.
//
// [Exporter] is a prometheus.Collector. Register it on your own registry or
// mount [Exporter.Handler], which serves it from a private one. Counters are
// named statelessauth_*_total; the login and authenticate latency histograms
// are statelessauth_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
