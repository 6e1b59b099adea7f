package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"nebula-gateway/internal/config"
	"nebula-gateway/pkg/logging"
)

// Application bootstraps and runs nebula-gateway.
//
// Initialization happens in two phases:
//  1. Bootstrap: load configuration, initialize logging, build services.
//  2. Execution: run the HTTP service or the MCP stdio server.
//
// Example usage:
//
//	application, err := app.NewApplication(ctx, app.NewConfig("", "debug", "", version))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.RunServer(ctx)
type Application struct {
	config     *Config
	configPath string
	logOutput  io.Writer
	services   *Services
}

// NewApplication loads configuration and builds all services. Endpoint
// discovery, when enabled, happens here, so ctx bounds it.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}

	// Log at the requested level while the configuration itself loads.
	bootLevel, _ := logging.ParseLevel(cfg.LogLevel)
	logging.InitForCLI(bootLevel, logOutput)

	configPath := cfg.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.GetDefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	gatewayCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	initLogging(gatewayCfg.Logging, cfg, logOutput)

	services, err := InitializeServices(ctx, gatewayCfg, cfg.Version)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:     cfg,
		configPath: configPath,
		logOutput:  logOutput,
		services:   services,
	}, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Close releases background resources.
func (a *Application) Close() {
	a.services.Manager.Stop()
}

// initLogging applies the configured level and format; command line flags
// win over the file.
func initLogging(logCfg config.LoggingConfig, cfg *Config, output io.Writer) {
	levelName := logCfg.Level
	if cfg.LogLevel != "" {
		levelName = cfg.LogLevel
	}
	level, ok := logging.ParseLevel(levelName)

	format := logging.Format(logCfg.Format)
	if cfg.LogFormat != "" {
		format = logging.Format(cfg.LogFormat)
	}

	logging.Init(level, format, output)
	if !ok {
		logging.Warn("Bootstrap", "Unknown log level %q, using info", levelName)
	}
}
