package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/puck.report/internal/lidar"
)

// DecoderConfig holds the tunable decode parameters. Fields are pointers so
// a partial JSON file overrides only what it names; the Get* accessors
// provide defaults for everything else.
//
// The upstream driver also exposed a revolution "frequency" option, but its
// loader bound it onto the max range variable, so it never took effect.
// Frequency is deliberately not carried here: only the range gate is
// load-bearing for decoding.
type DecoderConfig struct {
	SensorID     *string  `json:"sensor_id,omitempty"`
	MinRange     *float64 `json:"min_range,omitempty"`     // meters, inclusive
	MaxRange     *float64 `json:"max_range,omitempty"`     // meters, inclusive
	RingCapacity *int     `json:"ring_capacity,omitempty"` // initial per-ring point capacity
	RcvBuf       *int     `json:"rcvbuf,omitempty"`        // UDP receive buffer, bytes
	LogInterval  *string  `json:"log_interval,omitempty"`  // duration string like "30s"
}

// EmptyDecoderConfig returns a DecoderConfig with all fields unset.
func EmptyDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// LoadDecoderConfig loads a DecoderConfig from a JSON file. Partial configs
// are safe: omitted fields keep their defaults.
func LoadDecoderConfig(path string) (*DecoderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDecoderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that set fields carry usable values.
func (c *DecoderConfig) Validate() error {
	if c.MinRange != nil && *c.MinRange < 0 {
		return fmt.Errorf("min_range must be non-negative, got %f", *c.MinRange)
	}
	if c.MaxRange != nil && *c.MaxRange <= 0 {
		return fmt.Errorf("max_range must be positive, got %f", *c.MaxRange)
	}
	if c.MinRange != nil && c.MaxRange != nil && *c.MinRange > *c.MaxRange {
		return fmt.Errorf("min_range %f exceeds max_range %f", *c.MinRange, *c.MaxRange)
	}
	if c.RingCapacity != nil && *c.RingCapacity < 0 {
		return fmt.Errorf("ring_capacity must be non-negative, got %d", *c.RingCapacity)
	}
	if c.RcvBuf != nil && *c.RcvBuf <= 0 {
		return fmt.Errorf("rcvbuf must be positive, got %d", *c.RcvBuf)
	}
	if c.LogInterval != nil && *c.LogInterval != "" {
		if _, err := time.ParseDuration(*c.LogInterval); err != nil {
			return fmt.Errorf("invalid log_interval %q: %w", *c.LogInterval, err)
		}
	}
	return nil
}

// GetSensorID returns the sensor id or the default.
func (c *DecoderConfig) GetSensorID() string {
	if c.SensorID == nil || *c.SensorID == "" {
		return "vlp16"
	}
	return *c.SensorID
}

// GetMinRange returns the minimum range gate or the default.
func (c *DecoderConfig) GetMinRange() float64 {
	if c.MinRange == nil {
		return lidar.DefaultMinRange
	}
	return *c.MinRange
}

// GetMaxRange returns the maximum range gate or the default.
func (c *DecoderConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return lidar.DefaultMaxRange
	}
	return *c.MaxRange
}

// GetRingCapacity returns the initial ring capacity or the default.
func (c *DecoderConfig) GetRingCapacity() int {
	if c.RingCapacity == nil {
		return lidar.DefaultRingCapacity
	}
	return *c.RingCapacity
}

// GetRcvBuf returns the UDP receive buffer size or the default (4MB).
func (c *DecoderConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 4 << 20
	}
	return *c.RcvBuf
}

// GetLogInterval parses and returns the stats log interval or the default.
func (c *DecoderConfig) GetLogInterval() time.Duration {
	if c.LogInterval == nil || *c.LogInterval == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.LogInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
