// Package prometheus renders linkauth metrics in the Prometheus text
// exposition format.
//
// Counters are named linkauth_*_total; the Validate latency histogram is
// linkauth_validate_latency_seconds. Nothing is registered globally: mount
// [Exporter.Handler] wherever the scrape endpoint lives.
package prometheus
