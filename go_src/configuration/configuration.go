package configuration

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// Config struct to hold the configuration data
type Config struct {
	GlobalSettings GlobalSettings `json:"global_settings"`
	Logging        Logging        `json:"logging"`
	Data           DataSettings   `json:"data"`
	Labels         LabelSettings  `json:"labels"`
	Render         RenderSettings `json:"render"`
	StylePath      string         `json:"style_path,omitempty"`
}

// GlobalSettings struct
type GlobalSettings struct {
	AppName string `json:"app_name"`
	Version string `json:"version"`
}

// Logging struct
type Logging struct {
	Level         string `json:"level"` // e.g., "debug", "info", "warn", "error"
	FilePath      string `json:"file_path"`
	RotationSize  int    `json:"rotation_size"` // in MB
	MaxBackups    int    `json:"max_backups"`
	ConsoleOutput bool   `json:"console_output"`
}

// DataSettings configures series ingestion.
type DataSettings struct {
	// DefaultPath is the OHLCV file opened at startup when no path is
	// given on the command line.
	DefaultPath string `json:"default_path,omitempty"`
}

// LabelSettings configures label persistence.
type LabelSettings struct {
	DBPath           string `json:"db_path"`
	AutosaveSeconds  int    `json:"autosave_seconds"`
	AutosaveDisabled bool   `json:"autosave_disabled,omitempty"`
}

// RenderSettings bounds per-frame rendering work.
type RenderSettings struct {
	PrimitiveBudget int     `json:"primitive_budget"`
	BodyWidthFrac   float64 `json:"body_width_frac"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = json.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a usable configuration for running without a
// config file.
func DefaultConfig() *Config {
	c := &Config{
		GlobalSettings: GlobalSettings{AppName: "candlelab", Version: "dev"},
		Logging: Logging{
			Level:         "info",
			FilePath:      "logs/candlelab.log",
			RotationSize:  10,
			MaxBackups:    3,
			ConsoleOutput: true,
		},
	}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Labels.DBPath == "" {
		c.Labels.DBPath = "labels.duckdb"
	}
	if c.Labels.AutosaveSeconds <= 0 {
		c.Labels.AutosaveSeconds = 30
	}
	if c.Render.PrimitiveBudget <= 0 {
		c.Render.PrimitiveBudget = 4096
	}
	if c.Render.BodyWidthFrac <= 0 || c.Render.BodyWidthFrac > 1 {
		c.Render.BodyWidthFrac = 0.8
	}
	if c.StylePath == "" {
		c.StylePath = "style.yaml"
	}
}

// ValidateConfig checks for the presence and correctness of all required configuration fields
func (c *Config) ValidateConfig() error {
	// Validate GlobalSettings
	if c.GlobalSettings.AppName == "" {
		return fmt.Errorf("global_settings.app_name is required")
	}
	if c.GlobalSettings.Version == "" {
		return fmt.Errorf("global_settings.version is required")
	}

	// Validate Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level is required")
	}
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	levelIsValid := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.Logging.Level) == level {
			levelIsValid = true
			break
		}
	}
	if !levelIsValid {
		return fmt.Errorf("logging.level is invalid: %s", c.Logging.Level)
	}
	if c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required")
	}
	if c.Logging.RotationSize <= 0 {
		return fmt.Errorf("logging.rotation_size must be positive")
	}
	if c.Logging.MaxBackups < 0 {
		return fmt.Errorf("logging.max_backups cannot be negative")
	}

	// Validate Labels
	if c.Labels.DBPath == "" {
		return fmt.Errorf("labels.db_path is required")
	}
	if c.Labels.AutosaveSeconds <= 0 {
		return fmt.Errorf("labels.autosave_seconds must be positive")
	}

	// Validate Render
	if c.Render.PrimitiveBudget <= 0 {
		return fmt.Errorf("render.primitive_budget must be positive")
	}
	if c.Render.BodyWidthFrac <= 0 || c.Render.BodyWidthFrac > 1 {
		return fmt.Errorf("render.body_width_frac must be in (0,1]: %v", c.Render.BodyWidthFrac)
	}

	return nil
}

// GetConfigValue retrieves a configuration value using a dot-separated key
func (c *Config) GetConfigValue(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	currentValue := reflect.ValueOf(c).Elem()

	for _, part := range parts {
		if currentValue.Kind() == reflect.Ptr {
			currentValue = currentValue.Elem()
		}

		// Try to parse part as an array index first
		index, err := parseInt(part)
		if err == nil { // If part is an integer, try to access slice element
			if currentValue.Kind() == reflect.Slice {
				if index >= 0 && index < currentValue.Len() {
					currentValue = currentValue.Index(index)
					continue // Move to the next part of the key
				}
				return nil, fmt.Errorf("index out of range for key part '%s' in key '%s'", part, key)
			}
			// It's an integer but the current value is not a slice
			return nil, fmt.Errorf("key part '%s' is an index but not a slice in key '%s'", part, key)
		}

		// If not an index, assume it's a struct field
		if currentValue.Kind() != reflect.Struct {
			return nil, fmt.Errorf("key part '%s' is not a struct in key '%s'", part, key)
		}

		field := currentValue.FieldByNameFunc(func(fieldName string) bool {
			// Attempt to match JSON tag first, then field name
			structField, ok := currentValue.Type().FieldByName(fieldName)
			if !ok {
				return false
			}
			jsonTag := structField.Tag.Get("json")
			if jsonTag == part || strings.Split(jsonTag, ",")[0] == part {
				return true
			}
			return strings.EqualFold(fieldName, part)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("key part '%s' not found in key '%s'", part, key)
		}
		currentValue = field
	}
	if !currentValue.CanInterface() {
		return nil, fmt.Errorf("cannot get interface for key %s", key)
	}

	return currentValue.Interface(), nil
}

// GetLoggingConfig retrieves the logging configuration section
func (c *Config) GetLoggingConfig() Logging {
	return c.Logging
}

// parseInt is a helper to convert string to int, used for slice indexing.
func parseInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscan(s, &i)
	return i, err
}
