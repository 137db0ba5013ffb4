package pestroutes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxIDsPerGet is the largest id list the CRM accepts on get.
	DefaultMaxIDsPerGet = 1000
)

// Config holds the CRM endpoint and credentials.
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	AuthKey      string        `yaml:"auth_key"`
	AuthToken    string        `yaml:"auth_token"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxIDsPerGet int           `yaml:"max_ids_per_get"`
}

// DefaultConfig returns a Config with default limits and no endpoint.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		MaxIDsPerGet: DefaultMaxIDsPerGet,
	}
}

// Validate checks the endpoint and credentials.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.AuthKey, validation.Required),
		validation.Field(&c.AuthToken, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxIDsPerGet, validation.Min(0)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid pestroutes configuration")
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Config.Timeout is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the CRM REST API.
type Client struct {
	base   *url.URL
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIDsPerGet == 0 {
		cfg.MaxIDsPerGet = DefaultMaxIDsPerGet
	}

	c := &Client{
		base:   base,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the part of every CRM response the client inspects.
type envelope struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

// call runs one request against {base}/{resource}/{action} and returns the
// decoded response body.
func (c *Client) call(ctx context.Context, method, resource, action string, query url.Values, body any) (map[string]json.RawMessage, error) {
	endpoint := *c.base
	endpoint.Path = endpoint.Path + "/" + resource + "/" + action

	if query == nil {
		query = url.Values{}
	}
	query.Set("authenticationKey", c.cfg.AuthKey)
	query.Set("authenticationToken", c.cfg.AuthToken)
	endpoint.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", resource, action, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", resource, action, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(resource, action, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailure(resource, action, err)
	}

	c.logger.DebugContext(ctx, "crm request",
		"resource", resource,
		"action", action,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Resource:   resource,
			Action:     action,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(payload), 256),
		}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", resource, action, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", resource, action, err)
	}
	if !env.Success {
		return nil, remoteFailure(resource, action, resp.StatusCode, env.ErrorMessage)
	}
	return doc, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
