package dreamhost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/internal/metrics"
	"gitlab.bluewillows.net/root/dhdnssync/pkg/httputil"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// envelope is the response wrapper returned by every API command.
type envelope struct {
	Result string          `json:"result"`
	Data   json.RawMessage `json:"data"`
	Reason string          `json:"reason,omitempty"`
}

// hasData reports whether the envelope carried a non-null payload.
func (e *envelope) hasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// failure builds the EnvelopeError for a non-success envelope.
func (e *envelope) failure(command string) *EnvelopeError {
	reason := e.Reason
	if reason == "" {
		var code string
		if err := json.Unmarshal(e.Data, &code); err == nil {
			reason = code
		}
	}
	return &EnvelopeError{Command: command, Result: e.Result, Reason: reason}
}

// Client is a DreamHost DNS API client.
// It makes exactly one attempt per call; retrying is the caller's decision.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client. The daemon passes its shared client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a DreamHost API client authenticated with apiKey.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: httputil.DefaultClient(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// do executes a command and decodes its envelope. Transport faults, non-200
// statuses and undecodable bodies are returned as plain wrapped errors; the
// envelope's result is left for the caller to interpret.
func (c *Client) do(ctx context.Context, command string, params url.Values) (*envelope, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	params.Set("format", "json")
	params.Set("cmd", command)

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	env, err := c.execute(req)
	metrics.ProviderAPIDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case env.Result != resultSuccess:
		status = "failure"
	}
	metrics.ProviderAPIRequestsTotal.WithLabelValues(command, status).Inc()

	return env, err
}

func (c *Client) execute(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The transport error quotes the request URL, which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = httputil.RedactURL(req.URL, httputil.DefaultRedactedParams)
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	return &env, nil
}

// ListRecords returns every record on the account.
//
// An error wrapping ErrEnvelope means the provider answered without success
// or without a payload (typically a bad API key). Any other error is a
// transport or decoding fault.
func (c *Client) ListRecords(ctx context.Context) ([]Record, error) {
	env, err := c.do(ctx, CmdListRecords, nil)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	if env.Result != resultSuccess {
		return nil, fmt.Errorf("listing records: %w", env.failure(CmdListRecords))
	}
	if !env.hasData() {
		return nil, fmt.Errorf("listing records: %w", &EnvelopeError{
			Command: CmdListRecords,
			Result:  env.Result,
			Reason:  "response has no data",
		})
	}

	var records []Record
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return nil, fmt.Errorf("listing records: parsing data: %w", err)
	}

	c.logger.Debug("listed records", slog.Int("count", len(records)))

	return records, nil
}

// AddRecord creates a record. It returns nil only when the provider
// reports success.
func (c *Client) AddRecord(ctx context.Context, name, recordType, value string) error {
	if err := c.mutate(ctx, CmdAddRecord, name, recordType, value); err != nil {
		return fmt.Errorf("adding %s record %s: %w", recordType, name, err)
	}

	c.logger.Debug("added record",
		slog.String("record", name),
		slog.String("type", recordType),
		slog.String("value", value),
	)
	return nil
}

// RemoveRecord deletes the record matching name, type and value exactly.
func (c *Client) RemoveRecord(ctx context.Context, name, recordType, value string) error {
	if err := c.mutate(ctx, CmdRemoveRecord, name, recordType, value); err != nil {
		return fmt.Errorf("removing %s record %s: %w", recordType, name, err)
	}

	c.logger.Debug("removed record",
		slog.String("record", name),
		slog.String("type", recordType),
		slog.String("value", value),
	)
	return nil
}

func (c *Client) mutate(ctx context.Context, command, name, recordType, value string) error {
	params := url.Values{}
	params.Set("record", name)
	params.Set("type", recordType)
	params.Set("value", value)

	env, err := c.do(ctx, command, params)
	if err != nil {
		return err
	}
	if env.Result != resultSuccess {
		return env.failure(command)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
