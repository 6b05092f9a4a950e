package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout = 120 * time.Second

	streamPath  = "/api/assistant/stream"
	executePath = "/api/assistant/execute"
	usagePath   = "/api/usage"
)

// TokenProvider supplies the bearer token for each request. Auth is an
// opaque token from the caller's point of view; how it is minted or
// refreshed is not this package's concern.
type TokenProvider func() (string, error)

// Client talks to the assistant backend
type Client struct {
	options    Options
	httpClient *http.Client
}

// Options contains options for creating a client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Token      TokenProvider
	HTTPClient *http.Client
}

// Option is a functional option for configuring the client
type Option func(*Options)

// WithBaseURL sets the backend base URL
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the request timeout for non-streaming calls
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithMaxRetries sets the retry budget for the usage query
func WithMaxRetries(retries int) Option {
	return func(o *Options) {
		o.MaxRetries = retries
	}
}

// WithTokenProvider sets the bearer token source
func WithTokenProvider(p TokenProvider) Option {
	return func(o *Options) {
		o.Token = p
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

// New creates a new assistant backend client
func New(opts ...Option) (*Client, error) {
	options := Options{
		Timeout:    defaultTimeout,
		MaxRetries: 3,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.BaseURL == "" {
		options.BaseURL = strings.TrimRight(os.Getenv("CONCIERGE_URL"), "/")
		if options.BaseURL == "" {
			return nil, fmt.Errorf("backend base URL not provided")
		}
	}

	if options.Token == nil {
		token := os.Getenv("CONCIERGE_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("bearer token not provided")
		}
		options.Token = func() (string, error) { return token, nil }
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		// No timeout on the shared client: the turn stream stays open for
		// the length of a response. Non-streaming calls bound themselves
		// with a context deadline instead.
		httpClient = &http.Client{}
	}

	return &Client{
		options:    options,
		httpClient: httpClient,
	}, nil
}

// TurnStream is an open turn response stream. Callers must Close it.
type TurnStream struct {
	dec  *Decoder
	body io.ReadCloser
}

// Next returns the next decoded event from the stream
func (s *TurnStream) Next() (Event, error) {
	return s.dec.Next()
}

// Close releases the underlying response body
func (s *TurnStream) Close() error {
	return s.body.Close()
}

// StreamTurn opens a streaming turn request. The returned stream stays valid
// until the context is cancelled or the server closes the response. Non-2xx
// responses are returned as *StatusError; HTTP 429 means the daily quota is
// exhausted.
func (c *Client) StreamTurn(ctx context.Context, request *TurnRequest) (*TurnStream, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.options.BaseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.setHeaders(req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newStatusError(resp)
	}

	return &TurnStream{
		dec:  NewDecoder(resp.Body),
		body: resp.Body,
	}, nil
}

// Execute runs a confirmed tool call via the dedicated non-streaming
// endpoint and returns its single JSON result.
func (c *Client) Execute(ctx context.Context, request *ExecuteRequest) (*ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.Timeout)
	defer cancel()

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.options.BaseURL+executePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := c.setHeaders(req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp)
	}

	var result ToolResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}

	return &result, nil
}

// Usage fetches the current quota snapshot. Transient server failures are
// retried with backoff; the caller treats the result as a background refresh
// that an optimistic local value may override.
func (c *Client) Usage(ctx context.Context) (*UsageSnapshot, error) {
	var snapshot *UsageSnapshot
	err := c.doWithRetries(ctx, func() error {
		ctx, cancel := context.WithTimeout(ctx, c.options.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, "GET", c.options.BaseURL+usagePath, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		if err := c.setHeaders(req); err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return newStatusError(resp)
		}

		snapshot = &UsageSnapshot{}
		if err := json.NewDecoder(resp.Body).Decode(snapshot); err != nil {
			return fmt.Errorf("failed to parse usage: %w", err)
		}

		return nil
	})

	return snapshot, err
}

// setHeaders sets common headers for requests
func (c *Client) setHeaders(req *http.Request) error {
	token, err := c.options.Token()
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "concierge/1.0")
	return nil
}

// doWithRetries executes a function with retries
func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			// Exponential backoff
			delay := time.Duration(i) * time.Second
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if isRetryable(err) {
				continue
			}
			return err
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.Code {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}
