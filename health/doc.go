// Package health monitors the availability of model provider backends.
//
// A Checker probes one backend and reports a Status: Healthy, Degraded,
// or Unhealthy. AdapterChecker wraps a provider adapter and grades its
// probe latency. Aggregator fans out over all registered checkers and
// computes an overall status, and Monitor runs the aggregator on an
// interval so the latest results are available without blocking.
package health
