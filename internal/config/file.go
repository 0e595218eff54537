package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure.
// YAML and TOML files share the same keys.
type FileConfig struct {
	// UpdateIntervalMinutes is the delay between cycles in minutes.
	UpdateIntervalMinutes int `yaml:"update_interval_minutes,omitempty" toml:"update_interval_minutes"`

	// UpdateInterval is a Go duration ("15m") and wins over the minutes form.
	UpdateInterval string `yaml:"update_interval,omitempty" toml:"update_interval"`

	APIKey string `yaml:"api_key,omitempty" toml:"api_key"`

	Zones []FileZoneConfig `yaml:"zones,omitempty" toml:"zones"`

	// Single-zone form: a top-level zone with its records.
	Zone       string             `yaml:"zone,omitempty" toml:"zone"`
	DNSRecords []FileRecordConfig `yaml:"dns_records,omitempty" toml:"dns_records"`

	Logging    *FileLoggingConfig    `yaml:"logging,omitempty" toml:"logging"`
	Server     *FileServerConfig     `yaml:"server,omitempty" toml:"server"`
	PublicIP   *FilePublicIPConfig   `yaml:"public_ip,omitempty" toml:"public_ip"`
	Provider   *FileProviderConfig   `yaml:"provider,omitempty" toml:"provider"`
	Reconciler *FileReconcilerConfig `yaml:"reconciler,omitempty" toml:"reconciler"`
	History    *FileHistoryConfig    `yaml:"history,omitempty" toml:"history"`

	LockFile string `yaml:"lock_file,omitempty" toml:"lock_file"`
}

// FileZoneConfig is one zone and its declared records.
type FileZoneConfig struct {
	Name       string             `yaml:"name" toml:"name"`
	DNSRecords []FileRecordConfig `yaml:"dns_records,omitempty" toml:"dns_records"`
}

// FileRecordConfig is one declared record.
type FileRecordConfig struct {
	UpdateMode string `yaml:"update_mode" toml:"update_mode"` // EnsureExists, PublicIp
	Type       string `yaml:"type" toml:"type"`               // A, CNAME, MX, TXT, SRV
	Name       string `yaml:"name" toml:"name"`               // short name, "@" or empty for the apex
	Value      string `yaml:"value,omitempty" toml:"value"`   // ignored for PublicIp
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format"` // json, text
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port    int   `yaml:"port,omitempty" toml:"port"`
	Enabled *bool `yaml:"enabled,omitempty" toml:"enabled"`
}

// FilePublicIPConfig holds address echo settings.
type FilePublicIPConfig struct {
	Endpoints []string `yaml:"endpoints,omitempty" toml:"endpoints"`
	Family    string   `yaml:"family,omitempty" toml:"family"`   // any, ipv4, ipv6
	Timeout   string   `yaml:"timeout,omitempty" toml:"timeout"` // Go duration
}

// FileProviderConfig holds DreamHost API settings.
type FileProviderConfig struct {
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url"`
	Timeout string `yaml:"timeout,omitempty" toml:"timeout"`
}

// FileReconcilerConfig holds reconciliation settings.
type FileReconcilerConfig struct {
	DryRun *bool `yaml:"dry_run,omitempty" toml:"dry_run"`
}

// FileHistoryConfig holds history database settings.
type FileHistoryConfig struct {
	Path string `yaml:"path,omitempty" toml:"path"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in all string
// fields of the config structure.
func (c *FileConfig) interpolateEnvVars() {
	c.UpdateInterval = InterpolateEnvVars(c.UpdateInterval)
	c.APIKey = InterpolateEnvVars(c.APIKey)
	c.Zone = InterpolateEnvVars(c.Zone)
	c.LockFile = InterpolateEnvVars(c.LockFile)

	interpolateRecords(c.DNSRecords)
	for i := range c.Zones {
		c.Zones[i].Name = InterpolateEnvVars(c.Zones[i].Name)
		interpolateRecords(c.Zones[i].DNSRecords)
	}

	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.PublicIP != nil {
		for i := range c.PublicIP.Endpoints {
			c.PublicIP.Endpoints[i] = InterpolateEnvVars(c.PublicIP.Endpoints[i])
		}
		c.PublicIP.Family = InterpolateEnvVars(c.PublicIP.Family)
		c.PublicIP.Timeout = InterpolateEnvVars(c.PublicIP.Timeout)
	}

	if c.Provider != nil {
		c.Provider.BaseURL = InterpolateEnvVars(c.Provider.BaseURL)
		c.Provider.Timeout = InterpolateEnvVars(c.Provider.Timeout)
	}

	if c.History != nil {
		c.History.Path = InterpolateEnvVars(c.History.Path)
	}
}

func interpolateRecords(records []FileRecordConfig) {
	for i := range records {
		r := &records[i]
		r.UpdateMode = InterpolateEnvVars(r.UpdateMode)
		r.Type = InterpolateEnvVars(r.Type)
		r.Name = InterpolateEnvVars(r.Name)
		r.Value = InterpolateEnvVars(r.Value)
	}
}

// LoadFile reads and parses a configuration file. The format is chosen by
// extension: .toml files are parsed as TOML, everything else as YAML.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// GetConfigFilePath returns the config file path from the environment.
// Returns empty string if no config file is specified.
func GetConfigFilePath() string {
	return os.Getenv(EnvPrefix + "CONFIG")
}
