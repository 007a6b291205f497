package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Config is the root configuration for the mqttlog daemon.
type Config struct {
	// Internal logging for mqttlog itself
	Logging *LogConfig `toml:"logging"`

	// Local HTTP status endpoint
	Status StatusConfig `toml:"status"`

	// Forwarding pipelines, one broker connection each
	Pipelines []PipelineConfig `toml:"pipelines"`
}

// StatusConfig controls the local statistics endpoint.
type StatusConfig struct {
	Enabled bool  `toml:"enabled"`
	Port    int64 `toml:"port"`
}

func defaults() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Status: StatusConfig{
			Enabled: false,
			Port:    8088,
		},
		Pipelines: []PipelineConfig{
			DefaultPipelineConfig("default"),
		},
	}
}

// LoadWithCLI builds the effective configuration from defaults, the config
// file, MQTTLOG_-prefixed environment variables, and CLI arguments, in
// ascending priority.
func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("MQTTLOG_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig, ""); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return "MQTTLOG_" + env
}

// GetConfigPath resolves the config file location from the environment,
// falling back to ~/.config/mqttlog.toml.
func GetConfigPath() string {
	if configFile := os.Getenv("MQTTLOG_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("MQTTLOG_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("MQTTLOG_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "mqttlog.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "mqttlog.toml")
	}

	return "mqttlog.toml"
}

func (c *Config) validate() error {
	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return err
		}
	}

	if c.Status.Enabled {
		if c.Status.Port < 1 || c.Status.Port > 65535 {
			return fmt.Errorf("invalid status port: %d", c.Status.Port)
		}
	}

	if len(c.Pipelines) == 0 {
		return fmt.Errorf("no pipelines configured")
	}

	names := make(map[string]bool, len(c.Pipelines))
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pipeline[%d]: %w", i, err)
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate pipeline name: %q", p.Name)
		}
		names[p.Name] = true
	}

	return nil
}
