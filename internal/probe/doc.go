// Package probe verifies backend reachability. A Prober runs a discovery round
// over the candidate list using a probing strategy, and Monitor periodically
// pings the currently resolved endpoint so failures are noticed between user
// requests.
package probe
