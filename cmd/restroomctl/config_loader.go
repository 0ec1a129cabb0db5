package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vyrodovalexey/restroommap/internal/config"
)

// Environment variables read when the matching flag is not set.
const (
	envConfigPath = "RESTROOMCTL_CONFIG"
	envBaseURL    = "RESTROOMCTL_BASE_URL"
	envLogLevel   = "RESTROOMCTL_LOG_LEVEL"
)

// loadConfig loads the configuration file. An explicitly requested file
// must exist; otherwise a missing file falls back to the defaults.
func loadConfig(path string, explicit bool) (*config.Config, string, error) {
	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		if explicit {
			return nil, "", err
		}
		return config.DefaultConfig(), "defaults", nil
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, "", fmt.Errorf("invalid configuration in %s: %w", resolved, err)
		}
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, resolved, nil
}

// applyFlagOverrides applies explicitly set flags, then environment
// variables, on top of the loaded configuration.
func applyFlagOverrides(cfg *config.Config, flags *globalFlags, changed func(string) bool) {
	if changed("base-url") {
		cfg.API.BaseURL = flags.baseURL
	} else if v := os.Getenv(envBaseURL); v != "" {
		cfg.API.BaseURL = v
	}

	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	} else if v := os.Getenv(envLogLevel); v != "" {
		cfg.Logging.Level = v
	}

	if changed("log-format") {
		cfg.Logging.Format = flags.logFormat
	}

	if changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = flags.metricsAddr
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
