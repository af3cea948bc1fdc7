// Package handler implements the gateway's HTTP handlers. GatewayHandler
// forwards /api/ requests to the discovered backend through the resilient
// client and maps its errors to HTTP responses. StatusHandler reports the
// discovery and health state.
package handler
