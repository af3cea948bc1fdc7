// Package strategy defines the order in which candidate addresses are probed
// during a discovery round:
//
//   - Sequential: candidates are checked one at a time in priority order and
//     the first reachable one wins; later candidates are never contacted.
//   - Race: every candidate is checked concurrently and the earliest success
//     wins; outstanding checks are cancelled.
//
// Both return the winning candidate or the collected probe errors.
package strategy
