package alerting

import (
	"context"
	"fmt"

	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/pkg/communication/chat"
	"github.com/warehouseops/pipeline/pkg/communication/email"
	genericwebhook "github.com/warehouseops/pipeline/pkg/communication/webhook"
)

// EmailChannel sends severity-colored HTML alert emails.
type EmailChannel struct {
	sender   email.Sender
	from     string
	to       []string
}

// NewEmailChannel builds the email notification channel.
func NewEmailChannel(sender email.Sender, from string, to []string) *EmailChannel {
	return &EmailChannel{sender: sender, from: from, to: to}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Notify(ctx context.Context, alert events.Alert) error {
	msg := &email.Message{
		From:    c.from,
		To:      c.to,
		Subject: fmt.Sprintf("[%s] Warehouse Alert: %s", alert.Severity, alert.Title),
		Body:    email.Body{HTML: emailHTMLBody(alert)},
	}
	return c.sender.Send(ctx, msg)
}

// ChatChannel sends severity-colored chat attachments (Slack or any
// chat.Sender implementation, including the incoming-webhook adapter).
type ChatChannel struct {
	sender    chat.Sender
	channelID string
}

// NewChatChannel builds the chat notification channel.
func NewChatChannel(sender chat.Sender, channelID string) *ChatChannel {
	return &ChatChannel{sender: sender, channelID: channelID}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Notify(ctx context.Context, alert events.Alert) error {
	fields := []chat.AttachmentField{
		{Title: "Severity", Value: string(alert.Severity), Short: true},
		{Title: "Source", Value: alert.Source, Short: true},
		{Title: "Time", Value: alert.Timestamp.Format("2006-01-02 15:04:05 UTC"), Short: true},
		{Title: "Alert ID", Value: alert.AlertID, Short: true},
	}
	for k, v := range alert.Metadata {
		fields = append(fields, chat.AttachmentField{Title: k, Value: fmt.Sprintf("%v", v), Short: true})
	}

	msg := &chat.Message{
		ChannelID: c.channelID,
		Text:      fmt.Sprintf("Warehouse Alert: %s", alert.Title),
		Attachments: []chat.Attachment{
			{
				Title: alert.Title,
				Text:  alert.Description,
				Color: chatColor(alert.Severity),
				Fields: fields,
			},
		},
	}
	return c.sender.Send(ctx, msg)
}

// WebhookChannel POSTs a JSON alert envelope with configurable
// headers, mirroring the original's WebhookNotificationChannel.
type WebhookChannel struct {
	sender  genericwebhook.Sender
	url     string
	headers map[string]string
}

// NewWebhookChannel builds the generic webhook notification channel.
func NewWebhookChannel(sender genericwebhook.Sender, url string, headers map[string]string) *WebhookChannel {
	return &WebhookChannel{sender: sender, url: url, headers: headers}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Notify(ctx context.Context, alert events.Alert) error {
	payload := map[string]any{
		"event":     "alert",
		"alert":     alert,
		"timestamp": alert.Timestamp,
	}
	return c.sender.Send(ctx, &genericwebhook.Message{URL: c.url, Headers: c.headers, Payload: payload})
}
