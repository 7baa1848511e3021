package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/shared"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Client is the HTTP client of the pack backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	retries    uint
	retryWait  time.Duration

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend client. An empty baseURL uses [DefaultBaseURL] and a nil client uses [http.DefaultClient].
func NewClient(baseURL string, client *http.Client, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
		retryWait:  200 * time.Millisecond,
	}
}

// NewClientFromConfig creates a client with the configured base URL and request timeout.
func NewClientFromConfig(cfg shared.BackendConfig, logger *log.Logger) *Client {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := NewClient(cfg.URL, &http.Client{Timeout: timeout}, logger)
	c.SetRetries(cfg.Retries)
	return c
}

// SetRetries sets how many times a GET is retried after a transport error or a 5xx, with exponential backoff.
func (c *Client) SetRetries(n uint) {
	c.retries = n
}

// SetToken sets the bearer token sent with every request. An empty token sends none.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do performs a request against path with an optional JSON body and returns the raw response.
//
// Non-2xx statuses are not errors at this level. GETs are retried when retries are configured.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*APIResponse, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = data
	}

	if method != http.MethodGet || c.retries == 0 {
		return c.do(ctx, method, path, payload)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait

	resp, err := backoff.Retry(ctx, func() (*APIResponse, error) {
		resp, err := c.do(ctx, method, path, payload)
		switch {
		case errors.Is(err, shared.ErrServiceUnavailable):
			c.logger.Debug("retrying backend request", "path", path, "error", err)
			return nil, err
		case err != nil:
			return nil, backoff.Permanent(err)
		case resp.StatusCode >= 500:
			c.logger.Debug("retrying backend request", "path", path, "status", resp.StatusCode)
			return nil, &serverError{resp: resp}
		}
		return resp, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.retries+1))

	var se *serverError
	if errors.As(err, &se) {
		return se.resp, nil
	}
	return resp, err
}

// serverError carries a 5xx response through a retry loop.
type serverError struct {
	resp *APIResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("backend returned %d", e.resp.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*APIResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrServiceUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	c.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode)
	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (c *Client) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON body and returns the raw response.
func (c *Client) Post(ctx context.Context, path string, body any) (*APIResponse, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// doJSON performs a request and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := statusError(method, path, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s %s: invalid response: %v", shared.ErrAPIRequest, method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *APIResponse) error {
	if resp.OK() {
		return nil
	}

	msg := strings.TrimSpace(string(resp.Body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s: %s", shared.ErrNotAuthenticated, method, path, msg)
	}
	return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrAPIRequest, method, path, resp.StatusCode, msg)
}
