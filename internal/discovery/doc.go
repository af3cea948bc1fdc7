// Package discovery owns the resolved backend endpoint. The Coordinator runs
// at most one discovery round at a time; every caller that needs an endpoint
// while a round is in flight waits for that round and observes its result.
package discovery
