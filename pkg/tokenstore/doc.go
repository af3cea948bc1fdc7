// Package tokenstore provides the key/value contract used to hold session
// credentials between requests, with an in-memory implementation and one
// persisted to a YAML file.
package tokenstore
