package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/internal/resolver"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

// Configuration defaults.
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultUpdateInterval  = 15 * time.Minute
	DefaultHealthPort      = 8080
	DefaultHealthEnabled   = true
	DefaultDryRun          = false
	DefaultProviderTimeout = 30 * time.Second
	DefaultPublicIPTimeout = 10 * time.Second
	DefaultPublicIPFamily  = "any"
)

func defaultConfig() *Config {
	return &Config{
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		UpdateInterval:    DefaultUpdateInterval,
		HealthPort:        DefaultHealthPort,
		HealthEnabled:     DefaultHealthEnabled,
		DryRun:            DefaultDryRun,
		ProviderURL:       dreamhost.DefaultBaseURL,
		ProviderTimeout:   DefaultProviderTimeout,
		PublicIPEndpoints: append([]string(nil), resolver.DefaultEndpoints...),
		PublicIPFamily:    DefaultPublicIPFamily,
		PublicIPTimeout:   DefaultPublicIPTimeout,
	}
}

// applyEnvOverrides merges DHDNSSYNC_* environment variables into cfg.
// Environment variables always take precedence over file config.
func applyEnvOverrides(cfg *Config) []string {
	var errs []string

	if v := getEnv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := getEnv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if v := getEnv(EnvPrefix + "UPDATE_INTERVAL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.UpdateInterval = time.Duration(minutes) * time.Minute
		} else {
			errs = append(errs, fmt.Sprintf("%sUPDATE_INTERVAL_MINUTES: invalid integer %q", EnvPrefix, v))
		}
	}

	// The duration form wins over minutes when both are set.
	if v := getEnv(EnvPrefix + "UPDATE_INTERVAL"); v != "" {
		if interval, err := time.ParseDuration(v); err == nil {
			cfg.UpdateInterval = interval
		} else {
			errs = append(errs, fmt.Sprintf("%sUPDATE_INTERVAL: invalid duration %q (use format like 15m, 1h)", EnvPrefix, v))
		}
	}

	if key := getEnvWithFileFallback("API_KEY"); key != "" {
		cfg.APIKey = key
		cfg.APIKeySource = "env"
		if getEnv(EnvPrefix+"API_KEY_FILE") != "" && key != getEnv(EnvPrefix+"API_KEY") {
			cfg.APIKeySource = "env_file"
		}
	}

	if v := getEnv(EnvPrefix + "HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.HealthPort = port
		} else {
			errs = append(errs, fmt.Sprintf("%sHEALTH_PORT: invalid integer %q", EnvPrefix, v))
		}
	}

	if v := getEnv(EnvPrefix + "HEALTH_ENABLED"); v != "" {
		cfg.HealthEnabled = parseBool(v, cfg.HealthEnabled)
	}

	if v := getEnv(EnvPrefix + "DRY_RUN"); v != "" {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}

	if v := getEnv(EnvPrefix + "PROVIDER_URL"); v != "" {
		cfg.ProviderURL = v
	}

	if v := getEnv(EnvPrefix + "PUBLIC_IP_ENDPOINTS"); v != "" {
		cfg.PublicIPEndpoints = splitList(v)
	}

	if v := getEnv(EnvPrefix + "PUBLIC_IP_FAMILY"); v != "" {
		cfg.PublicIPFamily = strings.ToLower(v)
	}

	if v := getEnv(EnvPrefix + "HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}

	if v := getEnv(EnvPrefix + "LOCK_FILE"); v != "" {
		cfg.LockFile = v
	}

	return errs
}
