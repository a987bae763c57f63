package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// MailerSend sends MailerSend template messages. Params become the
// personalization data of the single recipient.
type MailerSend struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	timeout time.Duration
}

func NewMailerSend(cfg MailerSendConfig) (*MailerSend, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("mailersend: missing MAILERSEND_API_KEY or MAIL_FROM_EMAIL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MailerSend{
		client: mailersend.NewMailersend(cfg.APIKey),
		from: mailersend.From{
			Name:  cfg.FromName,
			Email: cfg.FromEmail,
		},
		timeout: cfg.Timeout,
	}, nil
}

func (m *MailerSend) Send(ctx context.Context, msg Message) error {
	if msg.To.Email == "" {
		return errors.New("mailersend: empty recipient email")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(m.from)
	message.SetRecipients([]mailersend.Recipient{{Name: msg.To.Name, Email: msg.To.Email}})
	message.SetTemplateID(msg.TemplateID)
	message.SetPersonalization([]mailersend.Personalization{{
		Email: msg.To.Email,
		Data:  templateData(msg.Params),
	}})

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return &StatusError{Provider: "mailersend", StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}
