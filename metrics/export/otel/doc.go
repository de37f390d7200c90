// Package otel exposes engine metrics as OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and, for the validate latency histogram, one Int64ObservableGauge per
// cumulative bucket plus count and sum gauges. A single callback reads
// [goTodo.Engine.MetricsSnapshot] on each collection. Callers own the
// MeterProvider.
package otel
