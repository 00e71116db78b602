// Package observe provides observability primitives for relay calls.
//
// It is a pure instrumentation library: no completion logic, no
// transport, no I/O beyond exporter setup. The relay wires the observer
// around each provider attempt.
package observe
