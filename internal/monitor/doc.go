// Package monitor provides a local HTTP listener for observing a running
// capture session: health, component statistics, the reconciled transcript
// snapshot, and Prometheus metrics.
package monitor
