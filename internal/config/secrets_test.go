package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetEnvOrFile_DirectValue(t *testing.T) {
	const directKey = "TEST_DHDNSSYNC_TOKEN"
	const fileKey = "TEST_DHDNSSYNC_TOKEN_FILE"

	t.Setenv(directKey, "direct-token")
	t.Setenv(fileKey, "")

	if got := getEnvOrFile(directKey, fileKey); got != "direct-token" {
		t.Errorf("getEnvOrFile() = %q, want %q", got, "direct-token")
	}
}

func TestGetEnvOrFile_FileTakesPrecedence(t *testing.T) {
	const directKey = "TEST_DHDNSSYNC_TOKEN"
	const fileKey = "TEST_DHDNSSYNC_TOKEN_FILE"

	secretFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretFile, []byte("file-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(directKey, "direct-value")
	t.Setenv(fileKey, secretFile)

	if got := getEnvOrFile(directKey, fileKey); got != "file-value" {
		t.Errorf("getEnvOrFile() = %q, want %q (file should take precedence, trimmed)", got, "file-value")
	}
}

func TestGetEnvOrFile_MissingFileFallsBack(t *testing.T) {
	const directKey = "TEST_DHDNSSYNC_TOKEN"
	const fileKey = "TEST_DHDNSSYNC_TOKEN_FILE"

	t.Setenv(directKey, "fallback")
	t.Setenv(fileKey, filepath.Join(t.TempDir(), "does-not-exist"))

	if got := getEnvOrFile(directKey, fileKey); got != "fallback" {
		t.Errorf("getEnvOrFile() = %q, want %q", got, "fallback")
	}
}

func TestGetEnvWithFileFallback(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(secretFile, []byte("  from-file  "), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DHDNSSYNC_API_KEY", "")
	t.Setenv("DHDNSSYNC_API_KEY_FILE", secretFile)

	if got := getEnvWithFileFallback("API_KEY"); got != "from-file" {
		t.Errorf("getEnvWithFileFallback() = %q, want %q", got, "from-file")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseBool(tt.input, tt.defaultValue); got != tt.want {
				t.Errorf("parseBool(%q, %v) = %v, want %v", tt.input, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example,")
	want := []string{"https://a.example", "https://b.example"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("splitList() mismatch (-want +got):\n%s", diff)
	}

	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}
