// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads [goTodo.Engine.MetricsSnapshot] on every
// scrape. Counters are named todo_*_total; the single histogram is
// todo_validate_latency_seconds. Nothing is registered globally: callers
// mount [PrometheusExporter.Handler] themselves.
package prometheus
