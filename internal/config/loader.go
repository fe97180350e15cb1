package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hookcheck/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/hookcheck"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns ~/.config/hookcheck/config.yaml.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadConfig loads configuration from a YAML file, layered on top of the
// defaults. A missing file is not an error; the defaults are returned.
// A directory path is resolved to the config.yaml inside it.
func LoadConfig(configPath string) (HarnessConfig, error) {
	config := GetDefaultConfig()

	if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configPath = filepath.Join(configPath, configFileName)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", configPath)
			return config, nil
		}
		return HarnessConfig{}, NewConfigurationError(configPath, ErrorTypeIO, err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		// config malformed
		cfgErr := NewConfigurationError(configPath, ErrorTypeParse, err.Error())
		cfgErr.Suggestions = []string{"Durations are written as strings such as \"5s\" or \"250ms\""}
		return HarnessConfig{}, cfgErr
	}

	if err := config.Validate(); err != nil {
		var cfgErr ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.FilePath = configPath
			cfgErr.FileName = filepath.Base(configPath)
			return HarnessConfig{}, cfgErr
		}
		return HarnessConfig{}, err
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configPath)
	return config, nil
}
