// Package notify delivers the email and SMS messages produced by workflow
// actions.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var ErrDeliveryFailed = errors.New("notification delivery failed")

// Message is a rendered notification ready for delivery.
type Message struct {
	Channel     Channel `json:"channel"`
	To          string  `json:"to"`
	Subject     string  `json:"subject,omitempty"`
	Body        string  `json:"body"`
	ExecutionID string  `json:"executionId,omitempty"`
}

// Sender hands a message to a delivery provider and returns the provider's
// message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogSender writes messages to the log. It backs local setups without a
// delivery provider.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "notify")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	id := uuid.NewString()

	s.logger.InfoContext(ctx, "Notification sent",
		"messageId", id,
		"channel", msg.Channel,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)

	return id, nil
}

// WebhookSender posts messages as JSON to a delivery gateway. Transport
// errors and 5xx responses are retried with a constant backoff.
type WebhookSender struct {
	url        string
	client     *http.Client
	retries    uint64
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewWebhookSender(url string, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		retries:    3,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.With("module", "notify"),
	}
}

// WithRetry overrides the retry policy.
func (s *WebhookSender) WithRetry(retries uint64, delay time.Duration) *WebhookSender {
	s.retries = retries
	s.retryDelay = delay

	return s
}

type gatewayResponse struct {
	ID string `json:"id"`
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	var id string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.logger.WarnContext(ctx, "Notification gateway unreachable", "error", err)

			return err
		}

		defer func() {
			_ = resp.Body.Close()
		}()

		body, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: gateway returned %d", ErrDeliveryFailed, resp.StatusCode)
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("%w: gateway returned %d: %s", ErrDeliveryFailed, resp.StatusCode, body))
		}

		var decoded gatewayResponse
		if json.Unmarshal(body, &decoded) == nil && decoded.ID != "" {
			id = decoded.ID
		} else {
			id = uuid.NewString()
		}

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), s.retries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}

	return id, nil
}
