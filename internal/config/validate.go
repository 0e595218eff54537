package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
)

// MinUpdateInterval is the shortest accepted delay between cycles.
const MinUpdateInterval = time.Minute

// minEchoEndpoints is how many address echo services must be configured,
// so that one unavailable service cannot stall every PublicIp record.
const minEchoEndpoints = 2

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validateConfig performs range and cross-field validation on the complete
// configuration. Returns a list of validation errors.
func validateConfig(cfg *Config, lo loadOptions) []string {
	var errs []string

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log format: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	if cfg.UpdateInterval < MinUpdateInterval {
		errs = append(errs, fmt.Sprintf("update interval: must be at least %s, got %s", MinUpdateInterval, cfg.UpdateInterval))
	}

	if cfg.APIKey == "" && !lo.allowNoAPIKey {
		errs = append(errs, "api_key: required (set in the config file, "+EnvPrefix+"API_KEY, "+EnvPrefix+"API_KEY_FILE, or run 'dhdnssync auth login')")
	}

	if cfg.HealthEnabled && (cfg.HealthPort < 1 || cfg.HealthPort > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", cfg.HealthPort))
	}

	if u, err := url.Parse(cfg.ProviderURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("provider.base_url: must be an http(s) URL, got %q", cfg.ProviderURL))
	}
	if cfg.ProviderTimeout <= 0 {
		errs = append(errs, "provider.timeout: must be positive")
	}

	errs = append(errs, validatePublicIP(cfg)...)

	if len(cfg.Zones) == 0 && !lo.allowNoZones {
		errs = append(errs, "zones: at least one zone is required")
	}

	seen := make(map[string]bool)
	for i, z := range cfg.Zones {
		path := fmt.Sprintf("zones[%d]", i)
		if z.Name == "" {
			errs = append(errs, path+".name: required")
		} else if !isDomainName(z.Name) {
			errs = append(errs, fmt.Sprintf("%s.name: invalid domain name %q", path, z.Name))
		}
		if seen[z.Name] {
			errs = append(errs, fmt.Sprintf("%s.name: duplicate zone %q", path, z.Name))
		}
		seen[z.Name] = true

		for j, r := range z.Records {
			errs = append(errs, validateRecord(fmt.Sprintf("%s.dns_records[%d]", path, j), r)...)
		}
	}

	return errs
}

func validatePublicIP(cfg *Config) []string {
	var errs []string

	if len(cfg.PublicIPEndpoints) < minEchoEndpoints {
		errs = append(errs, fmt.Sprintf("public_ip.endpoints: at least %d endpoints are required, got %d", minEchoEndpoints, len(cfg.PublicIPEndpoints)))
	}
	for _, ep := range cfg.PublicIPEndpoints {
		u, err := url.Parse(ep)
		if err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("public_ip.endpoints: invalid URL %q", ep))
			continue
		}
		switch u.Scheme {
		case "http", "https":
		case "dns":
			if name := strings.Trim(u.Path, "/"); name == "" || !isDomainName(name) {
				errs = append(errs, fmt.Sprintf("public_ip.endpoints: %q must name the record to query (dns://server/name)", ep))
			}
		default:
			errs = append(errs, fmt.Sprintf("public_ip.endpoints: %q must use http, https, or dns", ep))
		}
	}

	switch cfg.PublicIPFamily {
	case "any", "ipv4", "ipv6":
	default:
		errs = append(errs, fmt.Sprintf("public_ip.family: invalid value %q (must be any, ipv4, or ipv6)", cfg.PublicIPFamily))
	}
	if cfg.PublicIPFamily == "ipv6" && zone.NeedsPublicAddress(cfg.Zones) {
		errs = append(errs, "public_ip.family: ipv6 cannot be used with PublicIp records, which are A records")
	}

	if cfg.PublicIPTimeout <= 0 {
		errs = append(errs, "public_ip.timeout: must be positive")
	}

	return errs
}

// validateRecord ensures the declared record can be reconciled.
func validateRecord(path string, r zone.Record) []string {
	var errs []string

	if r.Name != "" && r.Name != "@" && !isDomainName(r.Name) {
		errs = append(errs, fmt.Sprintf("%s.name: invalid record name %q", path, r.Name))
	}

	switch r.UpdateMode {
	case zone.EnsureExists:
		if r.Value == "" {
			errs = append(errs, path+".value: required for EnsureExists records")
			break
		}
		if r.Type == zone.TypeA {
			if addr, err := netip.ParseAddr(r.Value); err != nil || !addr.Is4() {
				errs = append(errs, fmt.Sprintf("%s.value: A records must hold an IPv4 address, got %q", path, r.Value))
			}
		}
		if r.Type == zone.TypeCNAME {
			if _, err := netip.ParseAddr(r.Value); err == nil {
				errs = append(errs, fmt.Sprintf("%s.value: CNAME records cannot point to IP addresses, got %q", path, r.Value))
			}
		}
	case zone.PublicIp:
		if r.Type != zone.TypeA {
			errs = append(errs, fmt.Sprintf("%s.type: PublicIp records must be A records, got %s", path, r.Type))
		}
	}

	return errs
}

func isDomainName(name string) bool {
	if strings.Contains(name, "..") {
		return false
	}
	_, ok := dns.IsDomainName(name)
	return ok
}
