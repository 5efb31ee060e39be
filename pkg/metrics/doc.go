/*
Package metrics exposes Prometheus instrumentation for the pipeline:
run counts and durations by workflow, per-step durations, cache hit and
miss counters, scan findings by severity, and push attempts.

Metrics are package-level collectors registered at init. Serve exposes
the /metrics endpoint when an address is configured.
*/
package metrics
