package config

import (
	"fmt"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
)

// applyFileConfig copies file values over the defaults in cfg.
// Returns conversion errors; range checks happen in validateConfig.
func applyFileConfig(cfg *Config, fc *FileConfig) []string {
	var errs []string

	if fc.UpdateIntervalMinutes != 0 {
		cfg.UpdateInterval = time.Duration(fc.UpdateIntervalMinutes) * time.Minute
	}
	if fc.UpdateInterval != "" {
		if interval, err := time.ParseDuration(fc.UpdateInterval); err == nil {
			cfg.UpdateInterval = interval
		} else {
			errs = append(errs, fmt.Sprintf("update_interval: invalid duration %q", fc.UpdateInterval))
		}
	}

	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
		cfg.APIKeySource = "file"
	}

	zones, zoneErrs := convertFileZones(fc)
	cfg.Zones = zones
	errs = append(errs, zoneErrs...)

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(fc.Logging.Level)
		}
		if fc.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(fc.Logging.Format)
		}
	}

	if fc.Server != nil {
		if fc.Server.Port != 0 {
			cfg.HealthPort = fc.Server.Port
		}
		if fc.Server.Enabled != nil {
			cfg.HealthEnabled = *fc.Server.Enabled
		}
	}

	if fc.PublicIP != nil {
		if len(fc.PublicIP.Endpoints) > 0 {
			cfg.PublicIPEndpoints = fc.PublicIP.Endpoints
		}
		if fc.PublicIP.Family != "" {
			cfg.PublicIPFamily = strings.ToLower(fc.PublicIP.Family)
		}
		if fc.PublicIP.Timeout != "" {
			d, err := time.ParseDuration(fc.PublicIP.Timeout)
			if err != nil {
				errs = append(errs, fmt.Sprintf("public_ip.timeout: invalid duration %q", fc.PublicIP.Timeout))
			} else {
				cfg.PublicIPTimeout = d
			}
		}
	}

	if fc.Provider != nil {
		if fc.Provider.BaseURL != "" {
			cfg.ProviderURL = fc.Provider.BaseURL
		}
		if fc.Provider.Timeout != "" {
			d, err := time.ParseDuration(fc.Provider.Timeout)
			if err != nil {
				errs = append(errs, fmt.Sprintf("provider.timeout: invalid duration %q", fc.Provider.Timeout))
			} else {
				cfg.ProviderTimeout = d
			}
		}
	}

	if fc.Reconciler != nil && fc.Reconciler.DryRun != nil {
		cfg.DryRun = *fc.Reconciler.DryRun
	}

	if fc.History != nil {
		cfg.HistoryPath = fc.History.Path
	}

	if fc.LockFile != "" {
		cfg.LockFile = fc.LockFile
	}

	return errs
}

// convertFileZones converts the zones list, or the single-zone form, into
// zone.Zone values. Both forms together are rejected.
func convertFileZones(fc *FileConfig) ([]zone.Zone, []string) {
	var errs []string

	fileZones := fc.Zones
	if fc.Zone != "" || len(fc.DNSRecords) > 0 {
		if len(fc.Zones) > 0 {
			return nil, []string{"zone/dns_records: cannot be combined with zones"}
		}
		fileZones = []FileZoneConfig{{Name: fc.Zone, DNSRecords: fc.DNSRecords}}
	}

	zones := make([]zone.Zone, 0, len(fileZones))
	for i, fz := range fileZones {
		z := zone.Zone{
			Name:    strings.TrimSuffix(strings.TrimSpace(fz.Name), "."),
			Records: make([]zone.Record, 0, len(fz.DNSRecords)),
		}

		for j, fr := range fz.DNSRecords {
			rec, recErrs := convertFileRecord(fmt.Sprintf("zones[%d].dns_records[%d]", i, j), fr)
			errs = append(errs, recErrs...)
			z.Records = append(z.Records, rec)
		}

		zones = append(zones, z)
	}

	return zones, errs
}

func convertFileRecord(path string, fr FileRecordConfig) (zone.Record, []string) {
	var errs []string

	rec := zone.Record{
		Name:  strings.TrimSpace(fr.Name),
		Value: fr.Value,
	}

	mode, err := zone.ParseUpdateMode(fr.UpdateMode)
	if err != nil {
		errs = append(errs, path+".update_mode: "+err.Error())
	}
	rec.UpdateMode = mode

	recordType, err := zone.ParseRecordType(fr.Type)
	if err != nil {
		errs = append(errs, path+".type: "+err.Error())
	}
	rec.Type = recordType

	return rec, errs
}
