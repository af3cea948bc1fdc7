// Package config loads the gateway configuration from config.yaml, an
// optional .env file and environment variables. It covers the API candidate
// list and probing settings, the health tracker thresholds, the gateway
// listen address, token persistence and the metrics buffer.
package config
