/*
Package monitoring provides Prometheus metrics for the window shell.

# Overview

Metrics are registered on a caller-supplied prometheus.Registerer rather
than the global default registry, so several page sessions (and tests) can
each own an independent set.

# Features

- Navigation outcomes (swapped, cache hit, reload, dropped)
- Fragment fetch latency
- Script module loads and failures
- Scene and embed mounts, failures, timeouts and unmount errors
- Active window gauge
- Placement fallbacks
- Reveal/dismiss choreographies

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	metrics.ObserveNavigation(monitoring.OutcomeSwapped)
	timer := metrics.StartFetch()
	// ... perform fetch ...
	timer.Stop()

All helper methods are safe on a nil *Metrics.
*/
package monitoring
