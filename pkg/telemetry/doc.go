// Package telemetry groups the observability helpers of the rich history
// CLI.
//
// # Components
//
//   - logging: log/slog setup with level, format and credential redaction
//   - health: readiness checks served next to the Prometheus endpoint
//
// Metrics are defined where they are recorded, in the service package, and
// exposed with promhttp by the serve command.
package telemetry
