package mailer

import (
	"context"
	"sort"

	"github.com/diagnosis/reservations/pkg/logger"
)

// DevMailer logs template sends instead of delivering them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(ctx context.Context, msg Message) error {
	keys := make([]string, 0, len(msg.Params))
	for k := range msg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []any{
		"template_id", msg.TemplateID,
		"to", msg.To.Email,
		"to_name", msg.To.Name,
		"reply_to", msg.ReplyTo.Email,
	}
	for _, k := range keys {
		args = append(args, "param."+k, msg.Params[k])
	}

	logger.InfoContext(ctx, "📧 [DEV MAIL] template send", args...)
	return nil
}
