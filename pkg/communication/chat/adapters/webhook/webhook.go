// Package webhook implements chat.Sender over an incoming webhook URL
// (Slack/Mattermost-compatible JSON), as distinct from the bot-token
// API the slack adapter uses.
package webhook

import (
	"context"
	"time"

	"github.com/warehouseops/pipeline/pkg/communication/chat"
	genericwebhook "github.com/warehouseops/pipeline/pkg/communication/webhook"
	"github.com/warehouseops/pipeline/pkg/errors"
)

// Config configures the webhook-based chat sender.
type Config struct {
	URL string `env:"CHAT_WEBHOOK_URL" validate:"required"`
}

// Sender implements chat.Sender by POSTing Slack-compatible JSON.
type Sender struct {
	url    string
	client genericwebhook.Sender
}

// New creates a webhook-backed chat sender.
func New(cfg Config) (chat.Sender, error) {
	if cfg.URL == "" {
		return nil, errors.InvalidArgument("webhook URL is required", nil)
	}
	client := genericwebhook.New(genericwebhook.Config{Timeout: 10 * time.Second, Retries: 2})
	return &Sender{url: cfg.URL, client: client}, nil
}

type payload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Title  string  `json:"title,omitempty"`
	Text   string  `json:"text,omitempty"`
	Color  string  `json:"color,omitempty"`
	Fields []field `json:"fields,omitempty"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Send implements chat.Sender.
func (s *Sender) Send(ctx context.Context, msg *chat.Message) error {
	p := payload{Text: msg.Text}
	for _, a := range msg.Attachments {
		att := attachment{Title: a.Title, Text: a.Text, Color: a.Color}
		for _, f := range a.Fields {
			att.Fields = append(att.Fields, field{Title: f.Title, Value: f.Value, Short: f.Short})
		}
		p.Attachments = append(p.Attachments, att)
	}

	return s.client.Send(ctx, &genericwebhook.Message{URL: s.url, Payload: p})
}

// Close implements chat.Sender.
func (s *Sender) Close() error { return nil }
