// Package blob is an HTTP client for a Vercel-Blob-style object store.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Vercel Blob API.
	DefaultBaseURL  = "https://blob.vercel-storage.com"
	apiVersion      = "7"
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 512
)

// ErrMissingToken is returned by New when no token is configured.
var ErrMissingToken = errors.New("blob token is not configured")

// Config holds blob client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client uploads objects with authenticated PUT requests.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a blob client.
func New(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, ErrMissingToken
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	slog.Info("blob client configured", "base_url", config.BaseURL)

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

type putResponse struct {
	URL         string `json:"url"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Put stores data at key with public access and returns its URL.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.config.BaseURL+"/"+key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-content-type", contentType)
	req.Header.Set("x-add-random-suffix", "0")
	req.Header.Set("access", "public")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return "", &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var out putResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("blob store returned no url")
	}

	slog.Debug("blob stored", "pathname", out.Pathname)
	return out.URL, nil
}

// StatusError is a non-2xx response from the store.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blob store error %d: %s", e.Code, e.Body)
}
