package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/warehouseops/pipeline/pkg/communication/email"
	"github.com/warehouseops/pipeline/pkg/errors"
	"github.com/warehouseops/pipeline/pkg/validator"
)

// Sender implements email.Sender for SMTP.
type Sender struct {
	host     string
	port     string
	username string
	password string
	useTLS   bool
}

// New creates a new SMTP sender.
func New(cfg email.Config) (email.Sender, error) {
	if err := validator.New().ValidateStruct(cfg); err != nil {
		return nil, errors.InvalidArgument("invalid config", err)
	}

	return &Sender{
		host:     cfg.SMTPHost,
		port:     fmt.Sprintf("%d", cfg.SMTPPort),
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		useTLS:   cfg.SMTPTLS,
	}, nil
}

// Send implements email.Sender.
func (s *Sender) Send(ctx context.Context, msg *email.Message) error {
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	to := msg.To
	// Simple body construction. In a real world app this should likely use a library to handle MIME.
	var body string
	if msg.Body.HTML != "" {
		body = fmt.Sprintf("To: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
			to[0], msg.Subject, msg.Body.HTML)
	} else {
		body = fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", to[0], msg.Subject, msg.Body.PlainText)
	}

	if s.useTLS {
		return s.sendTLS(addr, auth, msg.From, to, []byte(body))
	}

	if err := smtp.SendMail(addr, auth, msg.From, to, []byte(body)); err != nil {
		return errors.Internal("failed to send email via smtp", err)
	}
	return nil
}

// sendTLS dials directly over TLS rather than relying on STARTTLS
// negotiation, for servers that require implicit TLS (e.g. port 465).
func (s *Sender) sendTLS(addr string, auth smtp.Auth, from string, to []string, body []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.host})
	if err != nil {
		return errors.Internal("failed to dial smtp over tls", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return errors.Internal("failed to create smtp client", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return errors.Internal("smtp auth failed", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return errors.Internal("smtp MAIL FROM failed", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return errors.Internal("smtp RCPT TO failed", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return errors.Internal("smtp DATA failed", err)
	}
	if _, err := w.Write(body); err != nil {
		return errors.Internal("failed to write smtp body", err)
	}
	if err := w.Close(); err != nil {
		return errors.Internal("failed to close smtp data writer", err)
	}
	return client.Quit()
}

// SendBatch implements email.Sender.
func (s *Sender) SendBatch(ctx context.Context, msgs []*email.Message) error {
	for _, msg := range msgs {
		if err := s.Send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Close implements email.Sender.
func (s *Sender) Close() error {
	return nil
}
