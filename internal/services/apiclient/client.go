// Package apiclient is the shared HTTP plumbing of the radarr, sonarr and
// tautulli clients: JSON requests, status checks and retries of idempotent
// calls.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrNotFound matches a 404 response through errors.Is
var ErrNotFound = errors.New("resource not found")

// StatusError is returned for non-2xx responses
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// retryable reports whether a failed status may succeed on a later attempt
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Authorizer decorates outgoing requests with credentials
type Authorizer func(req *http.Request)

// HeaderKey authenticates with an API key header (X-Api-Key for the *arr apps)
func HeaderKey(header, key string) Authorizer {
	return func(req *http.Request) { req.Header.Set(header, key) }
}

// QueryKey authenticates with an API key query parameter
func QueryKey(param, key string) Authorizer {
	return func(req *http.Request) {
		q := req.URL.Query()
		q.Set(param, key)
		req.URL.RawQuery = q.Encode()
	}
}

// Client performs JSON requests against one service
type Client struct {
	service    string
	baseURL    string
	authorize  Authorizer
	httpClient *http.Client
	logger     *logrus.Logger

	maxRetries    uint64
	retryInterval time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout (default 30s)
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRetries sets how often idempotent requests are retried and the initial
// backoff interval
func WithRetries(max uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryInterval = initial
	}
}

// New creates a client for the service at baseURL
func New(service, baseURL string, authorize Authorizer, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		service:       service,
		baseURL:       strings.TrimRight(baseURL, "/"),
		authorize:     authorize,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		maxRetries:    3,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the service name used in logs and errors
func (c *Client) Service() string {
	return c.service
}

// Do performs a request and decodes the JSON response into result. GET
// requests are retried with exponential backoff on transport errors, 5xx and
// 429 responses; other methods are attempted once.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonData
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.doOnce(ctx, method, path, query, payload, result)
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"service": c.service,
			"path":    path,
			"attempt": attempt,
		}).Debug("Request failed")
		return err
	}

	if method != http.MethodGet {
		return unwrapPermanent(operation())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte, result interface{}) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req)
	}

	c.logger.WithFields(logrus.Fields{
		"service": c.service,
		"method":  method,
		"path":    path,
	}).Debug("Making API request")

	// Perform request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	// Check status code
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: c.service, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	// Parse response
	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode %s response: %w", c.service, err)
		}
	}

	return nil
}
