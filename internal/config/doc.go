// Package config provides configuration loading and validation for the Minmeet client.
// It handles YAML-based configuration with struct validation covering audio capture,
// the meeting service endpoint, realtime sync, logging, and the monitor listener.
package config
