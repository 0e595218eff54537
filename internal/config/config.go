// Package config handles loading and validation of dhdnssync configuration
// from a YAML or TOML file, environment variables, and the OS keyring.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// DHDNSSYNC_* environment variables. The API key additionally falls back to
// the OS keyring when neither the file nor the environment provides one.
package config

import (
	"fmt"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
)

// Config holds the complete runtime configuration.
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// UpdateInterval is the delay between reconciliation cycles.
	UpdateInterval time.Duration

	// APIKey authenticates against the DreamHost API.
	APIKey string

	// APIKeySource records where APIKey came from: file, env, env_file or keyring.
	APIKeySource string

	// Zones are the declared zones in file order.
	Zones []zone.Zone

	// Health and metrics server
	HealthPort    int
	HealthEnabled bool

	// Reconciler
	DryRun bool

	// DreamHost API
	ProviderURL     string
	ProviderTimeout time.Duration

	// Public address discovery
	PublicIPEndpoints []string
	PublicIPFamily    string
	PublicIPTimeout   time.Duration

	// HistoryPath is the SQLite database recording applied changes.
	// Empty disables history.
	HistoryPath string

	// LockFile guards against two daemons reconciling the same zones.
	// Empty disables locking.
	LockFile string

	// ConfigPath is the file the configuration was read from, if any.
	ConfigPath string
}

// String returns a multi-line description with the API key redacted.
func (c *Config) String() string {
	var sb strings.Builder

	key := "(not set)"
	if c.APIKey != "" {
		key = "REDACTED (" + c.APIKeySource + ")"
	}

	fmt.Fprintf(&sb, "Config file: %s\n", valueOr(c.ConfigPath, "(none)"))
	fmt.Fprintf(&sb, "Log: level=%s format=%s\n", c.LogLevel, c.LogFormat)
	fmt.Fprintf(&sb, "Update interval: %s\n", c.UpdateInterval)
	fmt.Fprintf(&sb, "API key: %s\n", key)
	fmt.Fprintf(&sb, "Provider: %s (timeout %s)\n", c.ProviderURL, c.ProviderTimeout)
	fmt.Fprintf(&sb, "Public IP: %s family=%s (timeout %s)\n", strings.Join(c.PublicIPEndpoints, ", "), c.PublicIPFamily, c.PublicIPTimeout)
	fmt.Fprintf(&sb, "Health server: enabled=%t port=%d\n", c.HealthEnabled, c.HealthPort)
	fmt.Fprintf(&sb, "Dry run: %t\n", c.DryRun)
	fmt.Fprintf(&sb, "History: %s\n", valueOr(c.HistoryPath, "(disabled)"))
	fmt.Fprintf(&sb, "Lock file: %s\n", valueOr(c.LockFile, "(disabled)"))
	fmt.Fprintf(&sb, "Zones: %d (%d records)\n", len(c.Zones), zone.CountRecords(c.Zones))
	for _, z := range c.Zones {
		fmt.Fprintf(&sb, "  %s\n", z.Name)
		for _, r := range z.Records {
			value := r.Value
			if r.UpdateMode == zone.PublicIp {
				value = "<public address>"
			}
			fmt.Fprintf(&sb, "    %-6s %-30s %s [%s]\n", r.Type, z.Qualify(r.Name), value, r.UpdateMode)
		}
	}

	return sb.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// KeyLookup returns an API key from secondary storage. It returns an empty
// string without error when no key is stored.
type KeyLookup func() (string, error)

type loadOptions struct {
	keyLookup     KeyLookup
	allowNoZones  bool
	allowNoAPIKey bool
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithKeyLookup sets the fallback used when no API key is configured.
func WithKeyLookup(lookup KeyLookup) LoadOption {
	return func(o *loadOptions) {
		o.keyLookup = lookup
	}
}

// AllowNoZones skips the zone requirement, for commands that only talk to
// the API or the echo services.
func AllowNoZones() LoadOption {
	return func(o *loadOptions) {
		o.allowNoZones = true
	}
}

// AllowNoAPIKey skips the API key requirement, for commands that never
// call the DreamHost API.
func AllowNoAPIKey() LoadOption {
	return func(o *loadOptions) {
		o.allowNoAPIKey = true
	}
}

// Load builds the configuration from the file at path (optional), the
// environment and, for the API key only, the key lookup. All problems are
// collected into a single *ValidationError.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	cfg := defaultConfig()
	var errs []string

	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
		}
		cfg.ConfigPath = path
		errs = append(errs, applyFileConfig(cfg, fileCfg)...)
	}

	errs = append(errs, applyEnvOverrides(cfg)...)

	if cfg.APIKey == "" && lo.keyLookup != nil {
		key, err := lo.keyLookup()
		switch {
		case err != nil && !lo.allowNoAPIKey:
			errs = append(errs, "api_key: keyring lookup failed: "+err.Error())
		case key != "":
			cfg.APIKey = key
			cfg.APIKeySource = "keyring"
		}
	}

	errs = append(errs, validateConfig(cfg, lo)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	// PublicIp records are A records, so an IPv6 answer must never be taken.
	if cfg.PublicIPFamily == "any" && zone.NeedsPublicAddress(cfg.Zones) {
		cfg.PublicIPFamily = "ipv4"
	}
	return cfg, nil
}
