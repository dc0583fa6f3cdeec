package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Service ServiceConfig `yaml:"service"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// CaptureConfig contains audio capture and segmentation parameters
type CaptureConfig struct {
	SampleRate       int      `yaml:"sample_rate"`
	Channels         int      `yaml:"channels"`
	EchoCancellation bool     `yaml:"echo_cancellation"`
	NoiseSuppression bool     `yaml:"noise_suppression"`
	SegmentInterval  float64  `yaml:"segment_interval"`  // seconds
	FlushGraceMs     int      `yaml:"flush_grace_ms"`    // milliseconds
	CodecPreference  []string `yaml:"codec_preference"`  // ordered, first supported wins
	VisualizerRate   int      `yaml:"visualizer_rate"`   // samples per second
}

// ServiceConfig contains the remote meeting service endpoint configuration
type ServiceConfig struct {
	BaseURL              string `yaml:"base_url"`
	Timeout              int    `yaml:"timeout"`                // seconds, 0 = unbounded
	MaxConcurrentUploads int    `yaml:"max_concurrent_uploads"`
}

// SyncConfig contains realtime synchronization configuration
type SyncConfig struct {
	PollInterval float64 `yaml:"poll_interval"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MonitorConfig contains the local monitoring HTTP listener configuration
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}

	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (a *CaptureConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.SegmentInterval <= 0 {
		return fmt.Errorf("segment_interval must be positive, got %f", a.SegmentInterval)
	}

	if a.FlushGraceMs < 0 {
		return fmt.Errorf("flush_grace_ms cannot be negative, got %d", a.FlushGraceMs)
	}

	if float64(a.FlushGraceMs)/1000 >= a.SegmentInterval {
		return fmt.Errorf("flush_grace_ms (%d) must be shorter than segment_interval (%f s)",
			a.FlushGraceMs, a.SegmentInterval)
	}

	if a.VisualizerRate < 1 || a.VisualizerRate > 120 {
		return fmt.Errorf("visualizer_rate must be between 1 and 120 Hz, got %d", a.VisualizerRate)
	}

	return nil
}

// Validate validates service endpoint configuration
func (s *ServiceConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %d", s.Timeout)
	}

	if s.MaxConcurrentUploads < 1 {
		return fmt.Errorf("max_concurrent_uploads must be at least 1, got %d", s.MaxConcurrentUploads)
	}

	return nil
}

// Validate validates sync configuration
func (s *SyncConfig) Validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %f", s.PollInterval)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Validate validates monitor configuration
func (m *MonitorConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("monitor port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("monitor address cannot be empty when enabled")
		}
	}

	return nil
}

// GetSegmentInterval returns the segmentation interval as a time.Duration
func (a *CaptureConfig) GetSegmentInterval() time.Duration {
	return time.Duration(a.SegmentInterval * float64(time.Second))
}

// GetFlushGrace returns the encoder flush grace delay as a time.Duration
func (a *CaptureConfig) GetFlushGrace() time.Duration {
	return time.Duration(a.FlushGraceMs) * time.Millisecond
}

// GetTimeoutDuration returns the service request timeout as a time.Duration
func (s *ServiceConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetPollInterval returns the polling fallback interval as a time.Duration
func (s *SyncConfig) GetPollInterval() time.Duration {
	return time.Duration(s.PollInterval * float64(time.Second))
}
