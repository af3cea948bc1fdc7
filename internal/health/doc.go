// Package health tracks connectivity to the resolved backend and decides when
// a new discovery round is warranted.
//
// A single dropped request does not justify re-probing every candidate, so
// the tracker only recommends redetection once a run of consecutive failures
// reaches the threshold, and never more often than once per cooldown window:
//
//   - HEALTHY: last reported outcome was a success
//   - DEGRADED: failures recorded, threshold not yet reached
//   - FAILING: threshold reached, redetection allowed when cooldown permits
//
// Usage:
//
//	tracker := health.NewTracker(3, 30*time.Second)
//	if err != nil {
//	    tracker.ReportFailure()
//	    if tracker.ShouldDetectNow() {
//	        tracker.MarkDetectionAttempted()
//	        // re-probe...
//	    }
//	} else {
//	    tracker.ReportSuccess()
//	}
package health
