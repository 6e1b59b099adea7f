package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nebula-gateway/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/nebula-gateway"
	configFileName = "config.yaml"
)

// Environment variables that override the file.
const (
	EnvClientID      = "FENERGO_CLIENT_ID"
	EnvClientSecret  = "FENERGO_CLIENT_SECRET"
	EnvTokenEndpoint = "FENERGO_OAUTH_ENDPOINT"
	EnvAuthorityURL  = "FENERGO_AUTHORITY_URL"
	EnvRedirectURI   = "FENERGO_REDIRECT_URI"
	EnvTenantID      = "FENERGO_TENANT_ID"
	EnvAPIURL        = "FENERGO_API_URL"
	EnvPort          = "PORT"
)

// lookupEnv is replaced in tests.
var lookupEnv = os.LookupEnv

// GetDefaultConfigPath returns ~/.config/nebula-gateway.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}

	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath on top of the defaults, then
// applies environment overrides and validates the result. A missing file is
// not an error.
func LoadConfig(configPath string) (GatewayConfig, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return GatewayConfig{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			ErrorType: ErrorTypeIO,
			Message:   err.Error(),
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return GatewayConfig{}, ConfigurationError{
				FilePath:    configFilePath,
				FileName:    configFileName,
				ErrorType:   ErrorTypeParse,
				Message:     "malformed YAML",
				Details:     err.Error(),
				LineNumber:  yamlLine(err),
				Suggestions: []string{"Check indentation and quoting in " + configFileName},
			}
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := ApplyEnvOverrides(&config); err != nil {
		return GatewayConfig{}, err
	}

	if errs := Validate(config); errs.HasErrors() {
		for i := range errs.Errors {
			errs.Errors[i].FilePath = configFilePath
			errs.Errors[i].FileName = configFileName
		}
		return GatewayConfig{}, errs
	}

	return config, nil
}

// ApplyEnvOverrides copies the FENERGO_* and PORT environment variables over
// the loaded configuration.
func ApplyEnvOverrides(config *GatewayConfig) error {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvClientID, &config.OAuth.ClientID},
		{EnvClientSecret, &config.OAuth.ClientSecret},
		{EnvTokenEndpoint, &config.OAuth.TokenEndpoint},
		{EnvAuthorityURL, &config.OAuth.AuthorityURL},
		{EnvRedirectURI, &config.OAuth.RedirectURI},
		{EnvTenantID, &config.Fenergo.TenantID},
		{EnvAPIURL, &config.Fenergo.APIURL},
	}

	for _, o := range overrides {
		if v, ok := lookupEnv(o.name); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
			if o.name == EnvClientSecret {
				logging.Debug("Config", "Client secret taken from %s", o.name)
			} else {
				logging.Debug("Config", "Override from %s: %s", o.name, *o.target)
			}
		}
	}

	if v, ok := lookupEnv(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return ConfigurationError{
				Source:    "env",
				ErrorType: ErrorTypeValidation,
				Message:   fmt.Sprintf("%s must be a number, got %q", EnvPort, v),
			}
		}
		config.Server.Port = port
	}

	return nil
}

// yamlLine extracts the line number from a yaml.v3 error message, if any.
func yamlLine(err error) int {
	var typeErr *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}

	idx := strings.Index(msg, "line ")
	if idx < 0 {
		return 0
	}
	rest := msg[idx+len("line "):]
	end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(rest)
	}
	line, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return line
}
