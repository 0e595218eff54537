// Package resolver discovers the host's current public IP address by asking
// external echo services, in order, until one answers with a valid address.
//
// Two kinds of echo endpoint are supported:
//
//	https://icanhazip.com/                        plain-text HTTP echo
//	dns://resolver1.opendns.com/myip.opendns.com  DNS echo (A/AAAA answer)
//
// Any single service being down or rate limited only costs one attempt;
// resolution fails only when every endpoint has been tried.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/internal/metrics"
	"gitlab.bluewillows.net/root/dhdnssync/pkg/httputil"
)

// DefaultEndpoints are used when no endpoints are configured.
var DefaultEndpoints = []string{
	"https://icanhazip.com/",
	"https://ipinfo.io/ip",
}

// DefaultLookupTimeout bounds a single echo lookup.
const DefaultLookupTimeout = 5 * time.Second

// ErrAddressUnavailable is returned when no endpoint produced a valid address.
var ErrAddressUnavailable = errors.New("public address unavailable")

// Family restricts which IP versions are accepted.
type Family string

const (
	FamilyAny  Family = "any"
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// ParseFamily converts a configuration string to a Family.
// The empty string means FamilyAny.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case "", FamilyAny:
		return FamilyAny, nil
	case FamilyIPv4, "v4", "4":
		return FamilyIPv4, nil
	case FamilyIPv6, "v6", "6":
		return FamilyIPv6, nil
	default:
		return "", fmt.Errorf("invalid address family %q (must be any, ipv4, or ipv6)", s)
	}
}

func (f Family) accepts(addr netip.Addr) bool {
	switch f {
	case FamilyIPv4:
		return addr.Is4()
	case FamilyIPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return true
	}
}

// Endpoint is a single echo service.
type Endpoint interface {
	// Lookup returns the raw address text reported by the service.
	Lookup(ctx context.Context) (string, error)
	String() string
}

// Resolver tries its endpoints in order. It holds no state between calls.
type Resolver struct {
	rawEndpoints  []string
	endpoints     []Endpoint
	family        Family
	httpClient    *http.Client
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// Option is a functional option for configuring the Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for HTTP endpoints.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFamily restricts accepted addresses to one IP version.
func WithFamily(family Family) Option {
	return func(r *Resolver) {
		if family != "" {
			r.family = family
		}
	}
}

// WithLookupTimeout bounds each echo lookup, HTTP or DNS.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.lookupTimeout = timeout
		}
	}
}

// WithEndpoints replaces the parsed endpoints. Intended for tests and for
// callers supplying their own Endpoint implementations.
func WithEndpoints(endpoints ...Endpoint) Option {
	return func(r *Resolver) {
		r.endpoints = endpoints
	}
}

// New creates a Resolver for the given endpoint URLs, tried in order.
// An empty list selects DefaultEndpoints.
func New(endpoints []string, opts ...Option) (*Resolver, error) {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}

	r := &Resolver{
		rawEndpoints:  endpoints,
		family:        FamilyAny,
		httpClient:    httputil.DefaultClient(),
		lookupTimeout: DefaultLookupTimeout,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.endpoints == nil {
		for _, raw := range r.rawEndpoints {
			ep, err := ParseEndpoint(raw, r.httpClient, r.family, r.lookupTimeout)
			if err != nil {
				return nil, err
			}
			r.endpoints = append(r.endpoints, ep)
		}
	}

	return r, nil
}

// Endpoints returns the endpoints in the order they are tried.
func (r *Resolver) Endpoints() []string {
	names := make([]string, len(r.endpoints))
	for i, ep := range r.endpoints {
		names[i] = ep.String()
	}
	return names
}

// Resolve returns the current public address, or ErrAddressUnavailable
// after every endpoint failed. Endpoint failures are logged at debug level
// only. A cancelled context stops iteration and returns the context error.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	for _, ep := range r.endpoints {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		raw, err := ep.Lookup(ctx)
		if err != nil {
			r.logger.Debug("address echo failed",
				slog.String("endpoint", ep.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		addr, err := r.parse(raw)
		if err != nil {
			r.logger.Debug("address echo returned invalid address",
				slog.String("endpoint", ep.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		metrics.PublicIPLookupsTotal.WithLabelValues("success").Inc()
		r.logger.Debug("resolved public address",
			slog.String("endpoint", ep.String()),
			slog.String("address", addr),
		)
		return addr, nil
	}

	metrics.PublicIPLookupsTotal.WithLabelValues("unavailable").Inc()
	return "", fmt.Errorf("%w: tried %d endpoints", ErrAddressUnavailable, len(r.endpoints))
}

// parse validates echo output: surrounding whitespace is ignored, zoned
// addresses are rejected, and the family filter applies.
func (r *Resolver) parse(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", truncate(text, 64), err)
	}
	if addr.Zone() != "" {
		return "", fmt.Errorf("address %q has a zone", text)
	}
	if !r.family.accepts(addr) {
		return "", fmt.Errorf("address %q is not %s", text, r.family)
	}
	return addr.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
