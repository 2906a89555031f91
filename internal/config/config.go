// Package config loads and validates the mcpml.yaml configuration file.
// The resulting Config object is constructed once at startup and passed
// explicitly to every component that needs it; there is no ambient
// process-wide configuration state.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/a5c-ai/mcpml/internal/registry"
)

// DefaultPath is where the configuration file is looked up when no path
// is given on the command line.
const DefaultPath = "mcpml.yaml"

// ServerSettings configures the HTTP transport.
type ServerSettings struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Settings holds application-level settings.
type Settings struct {
	Server   ServerSettings `yaml:"server"`
	EnvFile  string         `yaml:"env_file"`
	LogLevel string         `yaml:"log_level"`

	// PluginDir enables discovery of user-supplied implementations
	// (function and agent plugins) when set. Discovery is off by default
	// to keep startup deterministic.
	PluginDir string `yaml:"plugin_dir"`

	// MaxConcurrentInvocations bounds concurrent tool calls; 0 uses the
	// engine default.
	MaxConcurrentInvocations int64 `yaml:"max_concurrent_invocations"`

	// DatabaseURL is the DSN of the invocation audit store. Empty selects
	// a local SQLite file; it can also be supplied via the DATABASE_URL
	// environment variable.
	DatabaseURL string `yaml:"database_url"`

	// UpstreamInitTimeoutSec bounds the initialization handshake with
	// upstream MCP servers, in seconds.
	UpstreamInitTimeoutSec int `yaml:"upstream_init_timeout_sec"`
}

// Config is the validated top-level configuration object.
type Config struct {
	Name       string                              `yaml:"name"`
	McpServers []registry.UpstreamServerDefinition `yaml:"mcpServers"`
	Tools      []registry.ToolDefinition           `yaml:"tools"`
	Settings   Settings                            `yaml:"settings"`
}

// Load reads, parses and validates the configuration file at path.
// A missing configuration file is the one startup error that is fatal to
// the process; the caller is expected to exit non-zero on it.
func Load(fs afero.Fs, path string) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file %s not found", path)
		}
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	// the env file is optional; a missing one is not an error
	if c.Settings.EnvFile != "" {
		_ = godotenv.Load(c.Settings.EnvFile)
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.Server.Host == "" {
		c.Settings.Server.Host = "0.0.0.0"
	}
	if c.Settings.Server.Port == 0 {
		c.Settings.Server.Port = 8000
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = "info"
	}
	if c.Settings.EnvFile == "" {
		c.Settings.EnvFile = ".env"
	}
	if c.Settings.UpstreamInitTimeoutSec <= 0 {
		c.Settings.UpstreamInitTimeoutSec = 10
	}
	if c.Settings.DatabaseURL == "" {
		c.Settings.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	// building a throwaway registry runs the full set of tool-level checks
	if _, err := registry.New(c.Tools, c.McpServers); err != nil {
		return err
	}
	return nil
}

// BuildRegistry constructs the immutable tool registry from the
// configuration. On reload, build a fresh registry and swap it in
// wholesale rather than patching the old one.
func (c *Config) BuildRegistry() (*registry.Registry, error) {
	return registry.New(c.Tools, c.McpServers)
}
