package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	// Host overrides the API host, mainly for tests.
	Host string
}

// SendGrid sends v3 dynamic template messages.
type SendGrid struct {
	cfg SendGridConfig
}

func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("sendgrid: missing SENDGRID_API_KEY or MAIL_FROM_EMAIL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Host == "" {
		cfg.Host = sendGridHost
	}
	return &SendGrid{cfg: cfg}, nil
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if msg.To.Email == "" {
		return errors.New("sendgrid: empty recipient email")
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail))
	m.SetTemplateID(msg.TemplateID)
	if msg.ReplyTo.Email != "" {
		m.SetReplyTo(mail.NewEmail(msg.ReplyTo.Name, msg.ReplyTo.Email))
	}

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.To.Name, msg.To.Email))
	for k, v := range msg.Params {
		p.SetDynamicTemplateData(k, v)
	}
	m.AddPersonalizations(p)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := sendgrid.GetRequest(s.cfg.APIKey, sendGridEndpoint, s.cfg.Host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &StatusError{Provider: "sendgrid", StatusCode: res.StatusCode, Body: strings.TrimSpace(res.Body)}
	}
	return nil
}
