package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gitlab.bluewillows.net/root/dhdnssync/pkg/zone"
	"gitlab.bluewillows.net/root/dhdnssync/providers/dreamhost"
)

var envKeys = []string{
	"LOG_LEVEL", "LOG_FORMAT", "UPDATE_INTERVAL", "UPDATE_INTERVAL_MINUTES",
	"API_KEY", "API_KEY_FILE", "HEALTH_PORT", "HEALTH_ENABLED", "DRY_RUN",
	"PROVIDER_URL", "PUBLIC_IP_ENDPOINTS", "PUBLIC_IP_FAMILY", "HISTORY_PATH",
	"LOCK_FILE", "CONFIG",
}

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(EnvPrefix+k, "")
	}
}

const minimalYAML = `
api_key: file-key
zones:
  - name: example.com
    dns_records:
      - update_mode: PublicIp
        type: A
        name: home
`

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", minimalYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != DefaultLogLevel || cfg.LogFormat != DefaultLogFormat {
		t.Errorf("log = %s/%s, want defaults", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.UpdateInterval != DefaultUpdateInterval {
		t.Errorf("UpdateInterval = %v, want %v", cfg.UpdateInterval, DefaultUpdateInterval)
	}
	if cfg.HealthPort != DefaultHealthPort || !cfg.HealthEnabled {
		t.Errorf("health = %d/%v, want defaults", cfg.HealthPort, cfg.HealthEnabled)
	}
	if cfg.ProviderURL != dreamhost.DefaultBaseURL {
		t.Errorf("ProviderURL = %q", cfg.ProviderURL)
	}
	if len(cfg.PublicIPEndpoints) < 2 {
		t.Errorf("PublicIPEndpoints = %v, want defaults", cfg.PublicIPEndpoints)
	}
	if cfg.APIKey != "file-key" || cfg.APIKeySource != "file" {
		t.Errorf("APIKey = %q from %q, want file-key from file", cfg.APIKey, cfg.APIKeySource)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}

	want := []zone.Zone{{
		Name: "example.com",
		Records: []zone.Record{
			{UpdateMode: zone.PublicIp, Type: zone.TypeA, Name: "home"},
		},
	}}
	if diff := cmp.Diff(want, cfg.Zones); diff != "" {
		t.Errorf("Zones mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PublicIPFamily(t *testing.T) {
	tests := []struct {
		name   string
		config string
		opts   []LoadOption
		want   string
	}{
		{
			name:   "PublicIp records pin ipv4",
			config: minimalYAML,
			want:   "ipv4",
		},
		{
			name: "EnsureExists only keeps any",
			config: `
api_key: k
zones:
  - name: example.com
    dns_records:
      - update_mode: EnsureExists
        type: TXT
        name: "@"
        value: "v=spf1 -all"
`,
			want: "any",
		},
		{
			name:   "no zones keeps any",
			config: "api_key: k\n",
			opts:   []LoadOption{AllowNoZones()},
			want:   "any",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(writeFile(t, "config.yml", tt.config), tt.opts...)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.PublicIPFamily != tt.want {
				t.Errorf("PublicIPFamily = %q, want %q", cfg.PublicIPFamily, tt.want)
			}
		})
	}
}

func TestLoad_SingleZoneForm(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", `
update_interval_minutes: 5
api_key: k
zone: example.org.
dns_records:
  - update_mode: EnsureExists
    type: MX
    name: "@"
    value: "10 mail.example.org"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.UpdateInterval != 5*time.Minute {
		t.Errorf("UpdateInterval = %v, want 5m", cfg.UpdateInterval)
	}
	if len(cfg.Zones) != 1 || cfg.Zones[0].Name != "example.org" {
		t.Fatalf("Zones = %+v, want example.org with trailing dot trimmed", cfg.Zones)
	}
	if r := cfg.Zones[0].Records[0]; r.Type != zone.TypeMX || r.UpdateMode != zone.EnsureExists {
		t.Errorf("record = %+v", r)
	}
}

func TestLoad_BothZoneFormsRejected(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", minimalYAML+`
zone: other.com
`)

	_, err := Load(path)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Load() error = %v, want *ValidationError", err)
	}
	if !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", minimalYAML)

	t.Setenv("DHDNSSYNC_LOG_LEVEL", "DEBUG")
	t.Setenv("DHDNSSYNC_LOG_FORMAT", "text")
	t.Setenv("DHDNSSYNC_UPDATE_INTERVAL_MINUTES", "3")
	t.Setenv("DHDNSSYNC_UPDATE_INTERVAL", "2h")
	t.Setenv("DHDNSSYNC_API_KEY", "env-key")
	t.Setenv("DHDNSSYNC_HEALTH_PORT", "9999")
	t.Setenv("DHDNSSYNC_HEALTH_ENABLED", "false")
	t.Setenv("DHDNSSYNC_DRY_RUN", "yes")
	t.Setenv("DHDNSSYNC_PROVIDER_URL", "http://localhost:8081/")
	t.Setenv("DHDNSSYNC_PUBLIC_IP_ENDPOINTS", "https://a.example, dns://127.0.0.1/myip.example")
	t.Setenv("DHDNSSYNC_PUBLIC_IP_FAMILY", "IPv4")
	t.Setenv("DHDNSSYNC_HISTORY_PATH", "/tmp/history.db")
	t.Setenv("DHDNSSYNC_LOCK_FILE", "/tmp/dhdnssync.lock")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.LogFormat != "text" {
		t.Errorf("log = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.UpdateInterval != 2*time.Hour {
		t.Errorf("UpdateInterval = %v, want 2h (duration wins over minutes)", cfg.UpdateInterval)
	}
	if cfg.APIKey != "env-key" || cfg.APIKeySource != "env" {
		t.Errorf("APIKey = %q from %q, want env-key from env", cfg.APIKey, cfg.APIKeySource)
	}
	if cfg.HealthPort != 9999 || cfg.HealthEnabled {
		t.Errorf("health = %d/%v", cfg.HealthPort, cfg.HealthEnabled)
	}
	if !cfg.DryRun {
		t.Error("DryRun should be true")
	}
	if cfg.ProviderURL != "http://localhost:8081/" {
		t.Errorf("ProviderURL = %q", cfg.ProviderURL)
	}
	wantEndpoints := []string{"https://a.example", "dns://127.0.0.1/myip.example"}
	if diff := cmp.Diff(wantEndpoints, cfg.PublicIPEndpoints); diff != "" {
		t.Errorf("PublicIPEndpoints mismatch (-want +got):\n%s", diff)
	}
	if cfg.PublicIPFamily != "ipv4" {
		t.Errorf("PublicIPFamily = %q", cfg.PublicIPFamily)
	}
	if cfg.HistoryPath != "/tmp/history.db" || cfg.LockFile != "/tmp/dhdnssync.lock" {
		t.Errorf("history/lock = %q/%q", cfg.HistoryPath, cfg.LockFile)
	}
}

func TestLoad_APIKeySources(t *testing.T) {
	noKeyYAML := strings.Replace(minimalYAML, "api_key: file-key\n", "", 1)

	keyFile := filepath.Join(t.TempDir(), "api_key")
	if err := os.WriteFile(keyFile, []byte("secret-file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	keyring := func(key string, err error) KeyLookup {
		return func() (string, error) { return key, err }
	}

	tests := []struct {
		name       string
		yaml       string
		env        map[string]string
		lookup     KeyLookup
		wantKey    string
		wantSource string
		wantErr    string
	}{
		{
			name:       "file",
			yaml:       minimalYAML,
			lookup:     keyring("ring-key", nil),
			wantKey:    "file-key",
			wantSource: "file",
		},
		{
			name:       "env beats file",
			yaml:       minimalYAML,
			env:        map[string]string{"DHDNSSYNC_API_KEY": "env-key"},
			wantKey:    "env-key",
			wantSource: "env",
		},
		{
			name: "secret file beats env",
			yaml: minimalYAML,
			env: map[string]string{
				"DHDNSSYNC_API_KEY":      "env-key",
				"DHDNSSYNC_API_KEY_FILE": keyFile,
			},
			wantKey:    "secret-file-key",
			wantSource: "env_file",
		},
		{
			name:       "keyring fallback",
			yaml:       noKeyYAML,
			lookup:     keyring("ring-key", nil),
			wantKey:    "ring-key",
			wantSource: "keyring",
		},
		{
			name:    "keyring empty",
			yaml:    noKeyYAML,
			lookup:  keyring("", nil),
			wantErr: "api_key: required",
		},
		{
			name:    "keyring error",
			yaml:    noKeyYAML,
			lookup:  keyring("", errors.New("dbus unavailable")),
			wantErr: "keyring lookup failed",
		},
		{
			name:    "no key anywhere",
			yaml:    noKeyYAML,
			wantErr: "api_key: required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "config.yml", tt.yaml)

			var opts []LoadOption
			if tt.lookup != nil {
				opts = append(opts, WithKeyLookup(tt.lookup))
			}

			cfg, err := Load(path, opts...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.APIKey != tt.wantKey || cfg.APIKeySource != tt.wantSource {
				t.Errorf("APIKey = %q from %q, want %q from %q", cfg.APIKey, cfg.APIKeySource, tt.wantKey, tt.wantSource)
			}
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DHDNSSYNC_API_KEY", "env-key")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "at least one zone") {
		t.Errorf("Load(\"\") error = %v, want zone requirement", err)
	}

	cfg, err := Load("", AllowNoZones())
	if err != nil {
		t.Fatalf("Load(AllowNoZones) error = %v", err)
	}
	if len(cfg.Zones) != 0 || cfg.ConfigPath != "" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("DHDNSSYNC_API_KEY", "")
	if _, err := Load("", AllowNoZones(), AllowNoAPIKey()); err != nil {
		t.Errorf("Load(AllowNoZones, AllowNoAPIKey) error = %v", err)
	}
}

func TestLoad_CollectsErrors(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", `
update_interval: soon
zones:
  - name: example.com
    dns_records:
      - update_mode: Sometimes
        type: AAAA
        name: x
`)

	_, err := Load(path)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Load() error = %v, want *ValidationError", err)
	}

	for _, want := range []string{"update_interval", "update_mode", ".type", "api_key"} {
		found := false
		for _, e := range vErr.Errors {
			if strings.Contains(e, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("errors %v missing %q", vErr.Errors, want)
		}
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil || !strings.Contains(err.Error(), "config file") {
		t.Errorf("Load() error = %v, want config file error", err)
	}
}

func TestConfig_StringRedactsKey(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yml", minimalYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s := cfg.String()
	if strings.Contains(s, "file-key") {
		t.Errorf("String() leaked API key:\n%s", s)
	}
	for _, want := range []string{"REDACTED (file)", "example.com", "home.example.com", "<public address>"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q:\n%s", want, s)
		}
	}
}
