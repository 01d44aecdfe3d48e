// Package metrics defines the sinks recording assignment runs. Sinks such as
// PromSink and InfluxSink live in infra/metrics and register themselves in
// the factory registry; several configured sinks are combined in a MultiSink.
package metrics
