package mailer

import (
	"context"
	"fmt"

	"github.com/diagnosis/reservations/pkg/config"
)

type Recipient struct {
	Email string
	Name  string
}

// Message is one templated send. Params are the named values the template
// on the relay substitutes.
type Message struct {
	TemplateID string
	To         Recipient
	ReplyTo    Recipient
	Params     map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// StatusError is returned when a relay answers outside the 2xx range.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// New builds the sender selected by cfg.Provider. Incomplete credentials are
// rejected here rather than on the first send.
func New(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case config.ProviderEmailJS, "":
		return NewEmailJS(EmailJSConfig{
			ServiceID:  cfg.EmailJS.ServiceID,
			PublicKey:  cfg.EmailJS.PublicKey,
			PrivateKey: cfg.EmailJS.PrivateKey,
			Endpoint:   cfg.EmailJS.APIURL,
			Timeout:    cfg.Timeout,
		})
	case config.ProviderMailerSend:
		return NewMailerSend(MailerSendConfig{
			APIKey:    cfg.MailerSendKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
			Timeout:   cfg.Timeout,
		})
	case config.ProviderSendGrid:
		return NewSendGrid(SendGridConfig{
			APIKey:    cfg.SendGridKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
			Timeout:   cfg.Timeout,
		})
	case config.ProviderDev:
		return NewDevMailer(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// templateData returns the params widened to the map type the SDKs expect.
func templateData(params map[string]string) map[string]interface{} {
	data := make(map[string]interface{}, len(params))
	for k, v := range params {
		data[k] = v
	}
	return data
}
