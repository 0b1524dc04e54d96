// Package observe provides telemetry for the AI response cache: structured
// JSON logging with payload redaction, OpenTelemetry metrics for cache
// outcomes and generation latency, and tracing around upstream generations.
package observe
