package resolver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// maxEchoBytes caps how much of an HTTP echo body is read. An address is
// at most 45 characters; anything much longer is not an echo response.
const maxEchoBytes = 1024

// ParseEndpoint builds an Endpoint from its URL form.
// Supported schemes are http, https and dns.
func ParseEndpoint(raw string, httpClient *http.Client, family Family, lookupTimeout time.Duration) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid echo endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid echo endpoint %q: missing host", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return &httpEndpoint{url: u.String(), client: httpClient, timeout: lookupTimeout}, nil
	case "dns":
		name := strings.Trim(u.Path, "/")
		if name == "" || !isDomainName(name) {
			return nil, fmt.Errorf("invalid echo endpoint %q: path must be the name to query", raw)
		}
		server := u.Host
		if u.Port() == "" {
			server = net.JoinHostPort(u.Hostname(), "53")
		}
		return &dnsEndpoint{
			raw:    u.String(),
			server: server,
			name:   dns.Fqdn(name),
			family: family,
			client: &dns.Client{Net: "udp", Timeout: lookupTimeout},
		}, nil
	default:
		return nil, fmt.Errorf("invalid echo endpoint %q: scheme must be http, https, or dns", raw)
	}
}

func isDomainName(name string) bool {
	_, ok := dns.IsDomainName(name)
	return ok
}

// httpEndpoint is a service answering GET with the caller's address as text.
type httpEndpoint struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func (e *httpEndpoint) String() string { return e.url }

func (e *httpEndpoint) Lookup(ctx context.Context) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBytes))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	return string(body), nil
}

// dnsEndpoint asks a resolver that answers a well-known name with the
// querying client's address, e.g. myip.opendns.com at resolver1.opendns.com.
type dnsEndpoint struct {
	raw    string
	server string
	name   string
	family Family
	client *dns.Client
}

func (e *dnsEndpoint) String() string { return e.raw }

func (e *dnsEndpoint) Lookup(ctx context.Context) (string, error) {
	var qtypes []uint16
	switch e.family {
	case FamilyIPv4:
		qtypes = []uint16{dns.TypeA}
	case FamilyIPv6:
		qtypes = []uint16{dns.TypeAAAA}
	default:
		qtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	}

	var lastErr error
	for _, qtype := range qtypes {
		addr, err := e.query(ctx, qtype)
		if err == nil {
			return addr, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (e *dnsEndpoint) query(ctx context.Context, qtype uint16) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(e.name, qtype)
	msg.RecursionDesired = true

	resp, _, err := e.client.ExchangeContext(ctx, msg, e.server)
	if err != nil {
		return "", fmt.Errorf("querying %s %s: %w", e.name, dns.TypeToString[qtype], err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("querying %s %s: server returned %s", e.name, dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			return v.A.String(), nil
		case *dns.AAAA:
			return v.AAAA.String(), nil
		}
	}
	return "", fmt.Errorf("querying %s %s: no address in answer", e.name, dns.TypeToString[qtype])
}
