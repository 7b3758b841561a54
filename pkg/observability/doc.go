// Package observability exposes the engine's execution counters as
// Prometheus metrics. The runtime reports through a small interface so
// embedders who don't scrape can skip the dependency at runtime.
package observability
