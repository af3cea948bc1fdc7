// Package metrics provides real-time metrics collection for the API client and
// gateway.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Request counts and classified failures per endpoint
//   - Response times with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - Probe reachability per candidate
//   - Discovery rounds, redetections and endpoint switches
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Emit is non-blocking and drops events when the
// buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventRequestCompleted,
//		Endpoint:   "http://localhost:8000/api",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// A nil *Collector is valid and discards every event.
package metrics
