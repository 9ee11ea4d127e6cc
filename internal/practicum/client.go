package practicum

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

	"github.com/hashicorp/go-retryablehttp"
)

const defaultMaxBytes int64 = 1 << 20

// Fetcher retrieves homework statuses updated since a unix timestamp.
type Fetcher interface {
	Fetch(ctx context.Context, from int64) (any, error)
}

// HTTPClient queries the homework status endpoint.
type HTTPClient struct {
	endpoint string
	token    string
	client   *retryablehttp.Client
	maxBytes int64
}

// Option customizes HTTPClient behavior.
type Option func(*HTTPClient)

// WithMaxBytes caps the size of an accepted response body.
func WithMaxBytes(maxBytes int64) Option {
	return func(c *HTTPClient) {
		if maxBytes > 0 {
			c.maxBytes = maxBytes
		}
	}
}

// NewHTTPClient constructs a client for the given endpoint and OAuth token.
func NewHTTPClient(endpoint, token string, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("status endpoint must not be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid status endpoint: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("practicum token must not be empty")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be greater than zero")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}

	c := &HTTPClient{
		endpoint: endpoint,
		token:    token,
		client:   client,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch issues one GET for statuses changed since from and decodes the JSON body.
// Numbers are decoded as json.Number.
func (c *HTTPClient) Fetch(ctx context.Context, from int64) (any, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &FetchError{Reason: ReasonRequest, Err: fmt.Errorf("create request: %w", err)}
	}
	query := req.URL.Query()
	query.Set("from_date", strconv.FormatInt(from, 10))
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: ReasonRequest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBytes))
		return nil, &FetchError{
			Reason:     ReasonStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("endpoint %s returned %s", c.endpoint, resp.Status),
		}
	}

	body, err := readWithLimit(resp.Body, c.maxBytes)
	if err != nil {
		return nil, &FetchError{Reason: ReasonPayload, StatusCode: resp.StatusCode, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &FetchError{Reason: ReasonPayload, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload, nil
}

func readWithLimit(r io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBytes)
	}
	return body, nil
}
