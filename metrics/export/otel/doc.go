// Package otel publishes client metrics as OpenTelemetry observable
// instruments read from snapshots at collection time.
package otel
