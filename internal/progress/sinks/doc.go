// Package sinks implements concrete observation consumers: Prometheus,
// session snapshot storage, and structured logging. Each sink satisfies the
// progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
