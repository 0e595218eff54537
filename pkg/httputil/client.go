// Package httputil provides the HTTP client shared by the address resolver
// and the DreamHost API client.
//
// One client is built at startup and reused for every call of every cycle,
// so connection pooling works across cycles.
package httputil

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout bounds a single request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "dhdnssync/1.0"

	redacted = "REDACTED"
)

// DefaultRedactedParams lists query parameters that are never logged.
// The DreamHost API takes its credential in the "key" parameter.
var DefaultRedactedParams = []string{"key"}

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the per-request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// UserAgent is the User-Agent header to set on requests.
	UserAgent string

	// RedactParams are query parameter names whose values are replaced
	// before a URL is logged. Defaults to DefaultRedactedParams.
	RedactParams []string

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger
}

// loggingTransport sets the User-Agent header and logs request outcomes
// at debug level with sensitive query parameters redacted.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	redact    []string
	logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil {
		attrs := []any{
			slog.String("method", req.Method),
			slog.String("url", RedactURL(req.URL, t.redact)),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		} else {
			attrs = append(attrs, slog.Int("status", resp.StatusCode))
		}
		t.logger.Debug("HTTP request", attrs...)
	}

	return resp, err
}

// RedactURL renders u with the values of the named query parameters replaced.
func RedactURL(u *url.URL, params []string) string {
	if u == nil {
		return ""
	}
	if len(params) == 0 || u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	changed := false
	for _, p := range params {
		if query.Has(p) {
			query.Set(p, redacted)
			changed = true
		}
	}
	if !changed {
		return u.String()
	}

	clean := *u
	clean.RawQuery = query.Encode()
	return clean.String()
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	redact := cfg.RedactParams
	if redact == nil {
		redact = DefaultRedactedParams
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &loggingTransport{
			base:      http.DefaultTransport,
			userAgent: userAgent,
			redact:    redact,
			logger:    cfg.Logger,
		},
	}
}

// DefaultClient returns a new HTTP client with default settings.
// Equivalent to NewClient(nil).
func DefaultClient() *http.Client {
	return NewClient(nil)
}
