// Package internaldefs holds the metric names and bucket bounds shared by
// the Prometheus and OpenTelemetry exporters, so both expose identical
// series.
//
// It must not import any exporter package or perform I/O.
package internaldefs
