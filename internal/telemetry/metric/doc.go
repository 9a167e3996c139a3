// Package metric provides Prometheus metrics for SigMesh.
//
// Registry owns a private prometheus.Registry with Go runtime and process
// collectors plus the application metrics:
//
//   - Active session gauge and session transition counters
//   - Authentication, token and envelope rejection counters by reason
//   - HTTP request counters and latency histograms by route
//
// Registry implements service.Observer so the session manager reports
// directly into it. Metrics are exposed at /metrics in Prometheus format.
package metric
