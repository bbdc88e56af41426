// Package client provides the core CRM HTTP client with request
// classification, retry with backoff, and response normalization.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for CRM client operations.
var (
	crmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_requests_total",
		Help: "Total CRM requests by path and status",
	}, []string{"path", "status"})

	crmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_request_duration_seconds",
		Help:    "CRM request duration in seconds by path",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"path"})

	crmErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_errors_total",
		Help: "Total CRM errors by kind",
	}, []string{"kind"})
)

// Client is the CRM API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// APIKey is the static credential sent as the X-API-KEY header.
	APIKey string

	// BaseURL is the API root, e.g. "https://api.propstack.de".
	BaseURL string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry controls the transient-failure retry policy.
	Retry RetryConfig

	// HTTPClient overrides the default transport (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey, baseURL string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// New creates a new CRM client. The credential is an explicit value here
// rather than process-global state, so multiple tenants and fake test
// credentials work without side effects.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseBackoff == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "crm-client").Logger(),
	}, nil
}

// Do performs a CRM request: attaches the credential, executes with retry
// on transient failures, classifies errors, and normalizes the response.
func (c *Client) Do(ctx context.Context, req Request) (*Payload, error) {
	start := time.Now()
	defer func() {
		crmRequestDuration.WithLabelValues(req.Path).Observe(time.Since(start).Seconds())
	}()

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + req.Path
	if q := req.Query.Encode(); q != "" {
		url += "?" + q
	}

	c.logger.Debug().
		Str("path", req.Path).
		Str("method", req.Method).
		Msg("Executing CRM request")

	var payload *Payload
	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() attemptResult {
		p, retryAfter, err := c.attempt(ctx, req.Method, url, req.Path, bodyBytes)
		if err != nil {
			return attemptResult{retryAfter: retryAfter, err: err}
		}
		payload = p
		return attemptResult{}
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return payload, nil
}

// attempt executes a single HTTP exchange. It returns the server-supplied
// Retry-After duration alongside rate-limit errors.
func (c *Client) attempt(ctx context.Context, method, url, path string, body []byte) (*Payload, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := &APIError{
			Kind:    KindNetwork,
			Path:    path,
			Message: "upstream unreachable",
			Err:     err,
		}
		crmErrorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		crmRequestsTotal.WithLabelValues(path, "network_error").Inc()
		c.logger.Error().Err(err).Str("path", path).Msg("HTTP request failed")
		return nil, 0, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := &APIError{
			Kind:    KindNetwork,
			Path:    path,
			Message: "read response body",
			Err:     err,
		}
		crmErrorsTotal.WithLabelValues(string(KindNetwork)).Inc()
		return nil, 0, apiErr
	}

	crmRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNoContent {
		return &Payload{NoContent: true}, 0, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		payload, err := normalizePayload(respBody)
		if err != nil {
			return nil, 0, &APIError{
				Kind:    KindUnknown,
				Path:    path,
				Message: "malformed success body",
				Err:     err,
			}
		}
		return payload, 0, nil
	}

	apiErr := classifyStatus(resp.StatusCode, path, respBody)
	crmErrorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()

	c.logger.Warn().
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("kind", string(apiErr.Kind)).
		Msg("CRM request error")

	var retryAfter time.Duration
	if apiErr.Kind == KindRateLimited {
		retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return nil, retryAfter, apiErr
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(status int, path string, body []byte) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return &APIError{Kind: KindUnauthorized, StatusCode: status, Path: path,
			Message: "invalid or missing API key"}
	case http.StatusForbidden:
		return &APIError{Kind: KindForbidden, StatusCode: status, Path: path,
			Message: "access denied"}
	case http.StatusNotFound:
		return &APIError{Kind: KindNotFound, StatusCode: status, Path: path,
			ResourceID: trailingID(path), Message: "resource not found"}
	case http.StatusUnprocessableEntity:
		apiErr := &APIError{Kind: KindValidation, StatusCode: status, Path: path}
		apiErr.Fields, apiErr.Message = parseValidationBody(body)
		return apiErr
	case http.StatusTooManyRequests:
		return &APIError{Kind: KindRateLimited, StatusCode: status, Path: path,
			Message: "rate limit exceeded"}
	default:
		return &APIError{Kind: KindUnknown, StatusCode: status, Path: path,
			Message: strings.TrimSpace(string(body))}
	}
}

// parseValidationBody extracts field-level messages from a structured 422
// body, falling back to the raw body as a single message.
func parseValidationBody(body []byte) (map[string][]string, string) {
	var structured struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Errors) > 0 {
		fields := make(map[string][]string, len(structured.Errors))
		for field, raw := range structured.Errors {
			var msgs []string
			if err := json.Unmarshal(raw, &msgs); err == nil {
				fields[field] = msgs
				continue
			}
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil {
				fields[field] = []string{msg}
			}
		}
		return fields, "validation failed"
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "validation failed"
	}
	return nil, msg
}

// trailingID returns the last path segment when it is numeric, so 404s on
// entity endpoints carry the missing resource's id.
func trailingID(path string) string {
	segments := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if _, err := strconv.ParseInt(last, 10, 64); err != nil {
		return ""
	}
	return last
}

// parseRetryAfter handles both delta-seconds and HTTP-date header forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Get performs a GET request against the given endpoint path.
func (c *Client) Get(ctx context.Context, path string, query Query) (*Payload, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Payload, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Payload, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Payload, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}
