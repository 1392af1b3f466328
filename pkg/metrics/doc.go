// Package metrics defines and registers the Prometheus metrics every
// other package instruments itself with: commit latency and counts from
// stateserver, fanout latency and subscriber counts from watcher, queue
// depth and per-operation duration from taskproxy, and retry counts from
// supervisor. Handler exposes them over HTTP for scraping; Collector
// samples the gauges that only make sense as a periodic snapshot rather
// than something a single call site can update on its own.
package metrics
