// Package logger builds the gateway's slog loggers: text output in dev and
// staging, JSON in prod, each record tagged with the environment. Component
// scopes a logger to one part of the gateway.
package logger
