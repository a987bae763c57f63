package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

type EmailJSConfig struct {
	ServiceID string
	PublicKey string
	// PrivateKey is the account access token. Required when the account
	// enforces strict mode for API calls.
	PrivateKey string
	Endpoint   string
	Timeout    time.Duration
}

// EmailJS delivers template sends through the EmailJS REST relay.
type EmailJS struct {
	hc  *http.Client
	cfg EmailJSConfig
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func NewEmailJS(cfg EmailJSConfig) (*EmailJS, error) {
	cfg.ServiceID = strings.TrimSpace(cfg.ServiceID)
	cfg.PublicKey = strings.TrimSpace(cfg.PublicKey)
	if cfg.ServiceID == "" || cfg.PublicKey == "" {
		return nil, errors.New("emailjs: service id and public key are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEmailJSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &EmailJS{
		hc:  &http.Client{Timeout: cfg.Timeout},
		cfg: cfg,
	}, nil
}

func (c *EmailJS) Send(ctx context.Context, msg Message) error {
	if msg.TemplateID == "" {
		return errors.New("emailjs: template id is required")
	}

	params := make(map[string]string, len(msg.Params)+3)
	for k, v := range msg.Params {
		params[k] = v
	}
	setDefault(params, "to_email", msg.To.Email)
	setDefault(params, "to_name", msg.To.Name)
	setDefault(params, "reply_to", msg.ReplyTo.Email)

	payload, err := json.Marshal(emailJSRequest{
		ServiceID:      c.cfg.ServiceID,
		TemplateID:     msg.TemplateID,
		UserID:         c.cfg.PublicKey,
		AccessToken:    c.cfg.PrivateKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("emailjs: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &StatusError{Provider: "emailjs", StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func setDefault(params map[string]string, key, value string) {
	if value == "" {
		return
	}
	if _, ok := params[key]; !ok {
		params[key] = value
	}
}
