// Package telemetry groups the operator's operational observability.
//
// Reaction attempts have two records: the optional audit log under the
// operator's storage package, and the counters in telemetry/metrics. The
// audit log answers "what happened to this contract"; metrics answer "how is
// the bot doing".
package telemetry
