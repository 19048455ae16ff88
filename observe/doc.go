// Package observe provides observability primitives for remote-model invocations.
//
// It supplies a structured Logger (zerolog-backed JSON with field redaction),
// OpenTelemetry Metrics for cache lookups, stores, attempts and outcomes, and a
// Tracer that opens one span per invocation. The cache and resilience packages
// accept these through Instruments; nothing here performs invocation itself.
package observe
