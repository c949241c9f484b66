// Package mystrix is the REST client for the MystriX backend API, which
// exposes the divergence scanner, the paper simulator, and the autotrader
// order surface consumed by the live console.
package mystrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Credentials carry venue API credentials forwarded to the backend on
// endpoints that act against the live exchange account.
type Credentials struct {
	ApiKey    string `json:"api_key"`
	ApiSecret string `json:"api_secret"`
}

// Scan parameter defaults, matching the backend's own.
const (
	defaultScanThreshold = 0.65
	defaultScanMaxEvents = 3
)

// Client talks to one MystriX backend instance.
type Client struct {
	baseURL       string
	creds         Credentials
	scanThreshold float64
	scanMaxEvents int
	httpClient    *http.Client
}

// New creates a backend client. baseURL is the API root, e.g.
// "https://api.wolfmystrix.in". timeout bounds every request except those
// issued with a caller-provided deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		scanThreshold: defaultScanThreshold,
		scanMaxEvents: defaultScanMaxEvents,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithCredentials sets the venue credentials attached to live endpoints.
func (c *Client) WithCredentials(creds Credentials) *Client {
	c.creds = creds
	return c
}

// WithScanParams sets the confidence threshold and per-batch event cap sent
// on every scan request. Non-positive values keep the defaults.
func (c *Client) WithScanParams(threshold float64, maxEvents int) *Client {
	if threshold > 0 {
		c.scanThreshold = threshold
	}
	if maxEvents > 0 {
		c.scanMaxEvents = maxEvents
	}
	return c
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx responses to errors. 404 maps to
// domain.ErrNotFound so callers can start an endpoint cooldown instead of
// retrying immediately.
func checkHTTPStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("unexpected status %d: %s", status, string(body))
}
