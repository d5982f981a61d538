// Package ledger is the HTTP client of the attendance backend: it lists
// enrolled employees and records check-ins and check-outs.
package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

const defaultTimeout = 15 * time.Second

// Client talks to the attendance backend API.
type Client struct {
	parsedURL *url.URL
	token     string
	client    *http.Client
	dim       int
}

// NewClient creates a client for baseURL (e.g. "https://hr.example.com/api").
// token is sent as a bearer token when non-empty.
func NewClient(baseURL, token string, dim int) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ledger URL is required")
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ledger URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid ledger URL scheme %q", parsed.Scheme)
	}
	if dim <= 0 {
		dim = constants.DescriptorDim
	}
	return &Client{
		parsedURL: parsed,
		token:     token,
		client:    &http.Client{Timeout: defaultTimeout},
		dim:       dim,
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// resolveURL joins path segments onto the base URL.
func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}
