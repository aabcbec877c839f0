// Package records writes field updates back to the system that owns order,
// customer and delivery records.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUpdateRejected = errors.New("record update rejected")
)

type Updater interface {
	Update(ctx context.Context, entity, id string, fields map[string]any) error
}

// LogUpdater logs updates instead of applying them.
type LogUpdater struct {
	logger *slog.Logger
}

func NewLogUpdater(logger *slog.Logger) *LogUpdater {
	return &LogUpdater{logger: logger.With("module", "records")}
}

func (u *LogUpdater) Update(ctx context.Context, entity, id string, fields map[string]any) error {
	u.logger.InfoContext(ctx, "Record updated", "entity", entity, "id", id, "fields", fields)

	return nil
}

// APIClient applies updates with PATCH <base>/<entity>s/<id>.
type APIClient struct {
	baseURL string
	client  *http.Client
	retries uint64
	delay   time.Duration
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 2,
		delay:   time.Second,
	}
}

// WithRetry overrides the retry policy.
func (c *APIClient) WithRetry(retries uint64, delay time.Duration) *APIClient {
	c.retries = retries
	c.delay = delay

	return c
}

func (c *APIClient) Update(ctx context.Context, entity, id string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%ss/%s", c.baseURL, url.PathEscape(entity), url.PathEscape(id))

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}

		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s %s", ErrRecordNotFound, entity, id))
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: records api returned %d", ErrUpdateRejected, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("%w: records api returned %d", ErrUpdateRejected, resp.StatusCode))
		}

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.delay), c.retries), ctx)

	return backoff.Retry(operation, policy)
}
