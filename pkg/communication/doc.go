/*
Package communication provides messaging and notification services.

Subpackages:

  - chat: Slack-backed chat notifications
  - email: SMTP email delivery
  - webhook: generic JSON webhook delivery

Usage:

	import (
		"github.com/warehouseops/pipeline/pkg/communication/email"
		"github.com/warehouseops/pipeline/pkg/communication/email/adapters/smtp"
	)

	sender, err := smtp.New(cfg)
	err = sender.Send(ctx, &email.Message{To: []string{"user@example.com"}, Subject: "Hello"})
*/
package communication
