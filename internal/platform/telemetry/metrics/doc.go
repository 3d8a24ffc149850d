// Package metrics exposes the operator's Prometheus metrics.
//
// # Metric Families
//
//   - operator_reactions_total{template,outcome}: reaction attempts by result
//   - operator_reaction_duration_seconds{template}: reaction latency
//   - operator_submissions_total{kind,outcome}: create and exercise submissions
//   - operator_stream_reconnects_total: event stream reopen count
//   - operator_ready: 1 once the initial ledger state has loaded
//
// All recording methods are safe on a nil *Metrics so callers can run
// without a registry.
package metrics
