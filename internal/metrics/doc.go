// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Session lifecycle events (connect, reconnect, disconnect, unauthorized)
//   - Token refreshes and grace expirations
//   - Gateway call outcomes, latencies and retries
package metrics
