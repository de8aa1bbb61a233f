// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when fields are absent from the file.
const (
	DefaultListen  = ":8080"
	DefaultDBPath  = "uwb_data.db"
	DefaultOffset  = 40.0
	DefaultTimeout = 3 * time.Second
)

// DefaultCalibrationTags lists the reserved calibration tag ids.
var DefaultCalibrationTags = []string{"62"}

// Config is the full service configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	DBPath          string        `yaml:"db_path"`
	Offset          *float64      `yaml:"offset"`
	CalibrationTags []string      `yaml:"calibration_tags"`
	Forward         ForwardConfig `yaml:"forward"`
	Serial          SerialConfig  `yaml:"serial"`
}

// ForwardConfig configures the downstream push of committed readings.
// An empty URL disables forwarding.
type ForwardConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SerialConfig configures the optional anchor serial reader. An empty port
// name disables it (lines then arrive over HTTP only).
type SerialConfig struct {
	Port       string        `yaml:"port"`
	Baud       int           `yaml:"baud"`
	FlushEvery time.Duration `yaml:"flush_every"`
	MaxBatch   int           `yaml:"max_batch"`
}

// OffsetValue returns the calibration offset, falling back to DefaultOffset.
func (c *Config) OffsetValue() float64 {
	if c.Offset == nil {
		return DefaultOffset
	}
	return *c.Offset
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:          DefaultListen,
		DBPath:          DefaultDBPath,
		CalibrationTags: append([]string(nil), DefaultCalibrationTags...),
		Forward:         ForwardConfig{Timeout: DefaultTimeout},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Environment overrides for deploy-time wiring.
	if v := os.Getenv("UWB_LISTEN"); v != "" {
		config.Listen = v
	}
	if v := os.Getenv("UWB_DB_PATH"); v != "" {
		config.DBPath = v
	}
	if v := os.Getenv("UWB_FORWARD_URL"); v != "" {
		config.Forward.URL = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Offset != nil && *c.Offset < 0 {
		return fmt.Errorf("offset must not be negative, got %v", *c.Offset)
	}
	if c.Serial.Port != "" && c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must not be negative, got %d", c.Serial.Baud)
	}
	for i, tag := range c.CalibrationTags {
		if tag == "" {
			return fmt.Errorf("calibration_tags[%d] is empty", i)
		}
	}
	return nil
}
