// Package config loads the turn-processing pipeline's YAML configuration,
// in the teacher's one-struct-per-concern, strict-unmarshal style
// (internal/config/config.go's Load/applyDefaults/validateConfig shape).
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	TurnCore TurnCoreConfig `yaml:"turn_core"`
}

// LoggingConfig configures the slog handler cmd/turncore installs.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file, expanding environment
// variables and rejecting unknown fields the way the teacher's loader does.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.TurnCore.GuardrailsMode == "" {
		cfg.TurnCore.GuardrailsMode = "off"
	}
}

// ConfigValidationError reports one or more invalid configuration values.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		issues = append(issues, `logging.format must be "json" or "text"`)
	}

	switch cfg.TurnCore.GuardrailsMode {
	case "", "off", "auto", "always":
	default:
		issues = append(issues, `turn_core.guardrails_mode must be "off", "auto", or "always"`)
	}

	for group, setting := range cfg.TurnCore.ToolGroups {
		switch setting {
		case "off", "ask", "always":
		default:
			issues = append(issues, fmt.Sprintf("turn_core.tool_groups[%s] must be \"off\", \"ask\", or \"always\"", group))
		}
	}

	switch cfg.TurnCore.DeveloperOverride {
	case "", "none", "off", "always":
	default:
		issues = append(issues, `turn_core.developer_override must be "none", "off", or "always"`)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}
