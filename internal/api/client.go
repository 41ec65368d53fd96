package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Endpoint paths on the broker REST API.
const (
	tokenPath    = "/login/authorization/token"
	feedAuthPath = "/feed/market-data-feed/authorize"
)

// Credentials holds the OAuth app credentials used for the token exchange.
// The secret is never emitted in logs or error messages.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Client provides access to the brokerage REST API.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. The default HTTP timeout bounds
// every upstream call, including the catalog download.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
