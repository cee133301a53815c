// Package metric provides Prometheus metrics for FileLink.
//
// Metrics include:
//
//   - Link insert / consume / sweep counters
//   - Store operation latency histograms
//   - HTTP request counters and latency
//   - Go runtime and process collectors
//
// Metrics are exposed at /metrics in Prometheus format. All Observe helpers
// are safe to call on a nil *Registry so components can run without metrics.
package metric
