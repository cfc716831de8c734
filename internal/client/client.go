// Package client talks to the replay service HTTP API. It is used by the
// CLI and by producers that push transitions from outside the process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cartridge/replaybuffer/internal/middleware"
	"github.com/cartridge/replaybuffer/internal/service"
	"github.com/cartridge/replaybuffer/pkg/buffer"
)

// APIError is returned when the service answers with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replay service returned %d: %s", e.StatusCode, e.Message)
}

// Is maps service status codes back onto buffer sentinel errors.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusConflict:
		return target == buffer.ErrInsufficientSamples
	case http.StatusBadRequest:
		return target == buffer.ErrInvalidBatchSize && strings.Contains(e.Message, buffer.ErrInvalidBatchSize.Error())
	}
	return false
}

// Client is a replay service HTTP client
type Client struct {
	baseURL       string
	httpClient    *http.Client
	correlationID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCorrelationID tags every request with a fixed correlation ID.
func WithCorrelationID(id string) Option {
	return func(c *Client) { c.correlationID = id }
}

// New creates a client for the service at baseURL
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must include scheme and host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Push stores a single transition
func (c *Client) Push(ctx context.Context, t service.Transition) (service.Stats, error) {
	var stats service.Stats
	err := c.do(ctx, http.MethodPost, "/api/v1/transitions", t, &stats)
	return stats, err
}

// PushBatch stores transitions in order
func (c *Client) PushBatch(ctx context.Context, transitions []service.Transition) (service.Stats, error) {
	var stats service.Stats
	err := c.do(ctx, http.MethodPost, "/api/v1/transitions/batch", map[string]any{"transitions": transitions}, &stats)
	return stats, err
}

// Sample draws batchSize transitions
func (c *Client) Sample(ctx context.Context, batchSize int) (*service.SampleResult, error) {
	var result service.SampleResult
	path := "/api/v1/sample?batch_size=" + strconv.Itoa(batchSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats returns buffer occupancy
func (c *Client) Stats(ctx context.Context) (service.Stats, error) {
	var stats service.Stats
	err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &stats)
	return stats, err
}

// Clear discards every stored transition
func (c *Client) Clear(ctx context.Context) (service.ClearResult, error) {
	var result service.ClearResult
	err := c.do(ctx, http.MethodDelete, "/api/v1/transitions", nil, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.correlationID != "" {
		req.Header.Set(middleware.CorrelationHeader, c.correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Message = payload.Error
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
