// Package httpcall implements the http_call action.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/dukex/orderflow/pkg/models"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = time.Second
	maxRetryAttempts  = 5
)

var (
	// ErrHTTPMethodInvalid is returned when the HTTP method is not supported.
	ErrHTTPMethodInvalid = errors.New("invalid HTTP method")
	// ErrHTTPURLInvalid is returned when the URL is not an absolute http(s) URL.
	ErrHTTPURLInvalid = errors.New("invalid HTTP url")
	// ErrHTTPServerError is returned when the server keeps answering with 5xx.
	ErrHTTPServerError = errors.New("server error during HTTP call")
	// ErrHTTPClientError is returned on 4xx responses, which are not retried.
	ErrHTTPClientError = errors.New("client error during HTTP call")
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// Action performs an HTTP request with optional headers, body and retries.
type Action struct {
	URL        string
	Method     string
	Headers    map[string]string
	Body       string
	Timeout    time.Duration
	Retries    uint64
	RetryDelay time.Duration

	client *http.Client
}

// NewAction creates an Action from a rendered http_call configuration.
func NewAction(config *models.HTTPCallConfig) (*Action, error) {
	method := strings.ToUpper(config.Method)
	if method == "" {
		method = http.MethodGet
	}

	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: %s", ErrHTTPMethodInvalid, config.Method)
	}

	if !strings.HasPrefix(config.URL, "http://") && !strings.HasPrefix(config.URL, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrHTTPURLInvalid, config.URL)
	}

	timeout := config.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	delay := config.RetryDelay.Std()
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	retries := min(max(config.RetryAttempts, 0), maxRetryAttempts)

	return &Action{
		URL:        config.URL,
		Method:     method,
		Headers:    config.Headers,
		Body:       config.Body,
		Timeout:    timeout,
		Retries:    uint64(retries), //nolint:gosec // bounded above
		RetryDelay: delay,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Execute performs the request and returns status_code, body and headers.
// Transport errors and 5xx responses are retried.
func (a *Action) Execute(ctx context.Context, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "http_call_action", "method", a.Method, "url", a.URL)
	logger.InfoContext(ctx, "Executing HTTP call")

	var (
		result  map[string]any
		attempt int
	)

	operation := func() error {
		attempt++
		if attempt > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("HTTP call retry attempt %d/%d", attempt, a.Retries+1))
		}

		req, err := a.buildRequest(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}

		result, err = a.processResponse(ctx, resp, logger)
		if err != nil {
			return backoff.Permanent(err)
		}

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrHTTPClientError, resp.StatusCode))
		}

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(a.RetryDelay), a.Retries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return result, nil
}

func (a *Action) buildRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if a.Body != "" {
		body = strings.NewReader(a.Body)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	if a.Body != "" && req.Header.Get("Content-Type") == "" && json.Valid([]byte(a.Body)) {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (a *Action) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)

			logger.DebugContext(ctx, "Response is not JSON, returning as string")
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	logger.InfoContext(ctx, fmt.Sprintf("HTTP call completed with status %d, body length: %d",
		resp.StatusCode, len(bodyBytes)))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}, nil
}
