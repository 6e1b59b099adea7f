package app

import (
	"io"
)

// Config holds the command line settings the application is started with.
type Config struct {
	// ConfigPath is the directory holding config.yaml. Empty means
	// ~/.config/nebula-gateway.
	ConfigPath string

	// LogLevel and LogFormat override the configuration file when set.
	LogLevel  string
	LogFormat string

	// LogOutput receives log lines. Defaults to stderr so stdout stays free
	// for the MCP stdio transport and command output.
	LogOutput io.Writer

	// Version is reported to MCP clients.
	Version string
}

// NewConfig creates a new application configuration.
func NewConfig(configPath, logLevel, logFormat, version string) *Config {
	return &Config{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		Version:    version,
	}
}
