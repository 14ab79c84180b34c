// Package config loads the engine configuration: state roots, registry
// location and external-command timeouts. The configuration file is optional;
// a missing file yields defaults so the CLI works without any setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Registry string        `yaml:"registry"`
	State    StateConfig   `yaml:"state"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// StateConfig holds the two transaction roots. UserRoot defaults to
// $XDG_STATE_HOME/tweakctl at scope resolution time when left empty.
type StateConfig struct {
	UserRoot   string `yaml:"user_root,omitempty"`
	SystemRoot string `yaml:"system_root"`
}

// TimeoutConfig bounds every external command the engine runs. Long-running
// calls (reinstall, boot regeneration) stay synchronous; the timeout is what
// keeps the engine from hanging indefinitely.
type TimeoutConfig struct {
	OwnershipQuery   time.Duration `yaml:"ownership_query"`
	UnitControl      time.Duration `yaml:"unit_control"`
	PackageReinstall time.Duration `yaml:"package_reinstall"`
	BootRegenerate   time.Duration `yaml:"boot_regenerate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified file. A missing file is not an
// error: defaults are returned so the tool runs unconfigured.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Registry == "" {
		c.Registry = "/usr/share/tweakctl/registry.json"
	}
	if c.State.SystemRoot == "" {
		c.State.SystemRoot = "/var/lib/tweakctl"
	}
	if c.Timeouts.OwnershipQuery == 0 {
		c.Timeouts.OwnershipQuery = 10 * time.Second
	}
	if c.Timeouts.UnitControl == 0 {
		c.Timeouts.UnitControl = 30 * time.Second
	}
	if c.Timeouts.PackageReinstall == 0 {
		c.Timeouts.PackageReinstall = 5 * time.Minute
	}
	if c.Timeouts.BootRegenerate == 0 {
		c.Timeouts.BootRegenerate = 2 * time.Minute
	}
}
