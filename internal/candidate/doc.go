// Package candidate holds the ordered set of network addresses that might host
// the school backend. Insertion order is probing priority and the
// deployment-configured fallback address is always last.
package candidate
