// Package webhook implements the generic webhook notification
// channel: a configurable-header JSON POST to an arbitrary URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/warehouseops/pipeline/pkg/client/rest"
	"github.com/warehouseops/pipeline/pkg/errors"
)

// Sender posts a JSON payload to a webhook URL.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	Close() error
}

// Message is a generic outbound webhook call.
type Message struct {
	URL     string
	Headers map[string]string
	Payload any
}

// Config configures the HTTP sender.
type Config struct {
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" env-default:"10s"`
	Retries int           `env:"WEBHOOK_RETRIES" env-default:"2"`
}

type httpSender struct {
	client *rest.Client
}

// New returns a Sender backed by the resilient rest.Client.
func New(cfg Config) Sender {
	return &httpSender{client: rest.New("webhook", rest.Config{
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
	})}
}

func (s *httpSender) Send(ctx context.Context, msg *Message) error {
	if msg.URL == "" {
		return errors.InvalidArgument("webhook URL is required", nil)
	}

	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return errors.Internal("failed to encode webhook payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msg.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Internal("failed to build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Internal("webhook request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Internal(fmt.Sprintf("webhook returned status %d: %s", resp.StatusCode, respBody), nil)
	}
	return nil
}

func (s *httpSender) Close() error { return nil }
