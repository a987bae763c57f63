package mailer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/diagnosis/reservations/internal/platform/mailer"
	"github.com/diagnosis/reservations/pkg/config"
)

func TestEmailJS_Send_PostsTemplatePayload(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client, err := mailer.NewEmailJS(mailer.EmailJSConfig{
		ServiceID:  "service_1",
		PublicKey:  "public_1",
		PrivateKey: "private_1",
		Endpoint:   server.URL,
	})
	if err != nil {
		t.Fatalf("NewEmailJS: %v", err)
	}

	err = client.Send(context.Background(), mailer.Message{
		TemplateID: "template_user",
		To:         mailer.Recipient{Email: "guest@example.com", Name: "Guest"},
		ReplyTo:    mailer.Recipient{Email: "host@example.com"},
		Params: map[string]string{
			"reservation_datetime_display": "2026-10-20 19:30",
			"to_name":                      "Explicit Name",
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := map[string]any{
		"service_id":  "service_1",
		"template_id": "template_user",
		"user_id":     "public_1",
		"accessToken": "private_1",
		"template_params": map[string]any{
			"reservation_datetime_display": "2026-10-20 19:30",
			"to_email":                     "guest@example.com",
			"to_name":                      "Explicit Name",
			"reply_to":                     "host@example.com",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestEmailJS_Send_OmitsEmptyAccessToken(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client, _ := mailer.NewEmailJS(mailer.EmailJSConfig{ServiceID: "s", PublicKey: "p", Endpoint: server.URL})
	if err := client.Send(context.Background(), mailer.Message{TemplateID: "t"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := got["accessToken"]; ok {
		t.Fatalf("accessToken should be omitted when no private key is configured: %v", got)
	}
}

func TestEmailJS_Send_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("The template ID is invalid"))
	}))
	defer server.Close()

	client, _ := mailer.NewEmailJS(mailer.EmailJSConfig{ServiceID: "s", PublicKey: "p", Endpoint: server.URL})
	err := client.Send(context.Background(), mailer.Message{TemplateID: "bogus"})

	var statusErr *mailer.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "The template ID is invalid" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestEmailJS_Send_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, _ := mailer.NewEmailJS(mailer.EmailJSConfig{
		ServiceID: "s",
		PublicKey: "p",
		Endpoint:  server.URL,
		Timeout:   50 * time.Millisecond,
	})
	if err := client.Send(context.Background(), mailer.Message{TemplateID: "t"}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestEmailJS_Validation(t *testing.T) {
	if _, err := mailer.NewEmailJS(mailer.EmailJSConfig{PublicKey: "p"}); err == nil {
		t.Fatal("expected error without service id")
	}
	if _, err := mailer.NewEmailJS(mailer.EmailJSConfig{ServiceID: "s"}); err == nil {
		t.Fatal("expected error without public key")
	}

	client, _ := mailer.NewEmailJS(mailer.EmailJSConfig{ServiceID: "s", PublicKey: "p"})
	if err := client.Send(context.Background(), mailer.Message{}); err == nil {
		t.Fatal("expected error without template id")
	}
}

func TestSendGrid_Send_DynamicTemplate(t *testing.T) {
	var got struct {
		TemplateID       string `json:"template_id"`
		From             struct{ Email, Name string }
		ReplyTo          *struct{ Email string } `json:"reply_to"`
		Personalizations []struct {
			To                  []struct{ Email, Name string }
			DynamicTemplateData map[string]string `json:"dynamic_template_data"`
		}
	}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender, err := mailer.NewSendGrid(mailer.SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "reservations@example.com",
		FromName:  "Reservations",
		Host:      server.URL,
	})
	if err != nil {
		t.Fatalf("NewSendGrid: %v", err)
	}

	err = sender.Send(context.Background(), mailer.Message{
		TemplateID: "d-admin",
		To:         mailer.Recipient{Email: "host@example.com", Name: "Host"},
		ReplyTo:    mailer.Recipient{Email: "guest@example.com"},
		Params:     map[string]string{"n": "Guest", "sz": "4"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if auth != "Bearer SG.test" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.TemplateID != "d-admin" || got.From.Email != "reservations@example.com" {
		t.Fatalf("unexpected message header: %+v", got)
	}
	if got.ReplyTo == nil || got.ReplyTo.Email != "guest@example.com" {
		t.Fatalf("reply_to = %+v", got.ReplyTo)
	}
	if len(got.Personalizations) != 1 || got.Personalizations[0].To[0].Email != "host@example.com" {
		t.Fatalf("personalizations = %+v", got.Personalizations)
	}
	if diff := cmp.Diff(map[string]string{"n": "Guest", "sz": "4"}, got.Personalizations[0].DynamicTemplateData); diff != "" {
		t.Fatalf("dynamic data mismatch (-want +got):\n%s", diff)
	}
}

func TestSendGrid_Send_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer server.Close()

	sender, _ := mailer.NewSendGrid(mailer.SendGridConfig{APIKey: "k", FromEmail: "f@example.com", Host: server.URL})
	err := sender.Send(context.Background(), mailer.Message{TemplateID: "d-1", To: mailer.Recipient{Email: "x@example.com"}})

	var statusErr *mailer.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

func TestSendGrid_RequiresRecipient(t *testing.T) {
	sender, _ := mailer.NewSendGrid(mailer.SendGridConfig{APIKey: "k", FromEmail: "f@example.com"})
	if err := sender.Send(context.Background(), mailer.Message{TemplateID: "d-1"}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	base := config.EmailConfig{
		FromEmail:     "from@example.com",
		FromName:      "Reservations",
		Timeout:       time.Second,
		MailerSendKey: "ms-key",
		SendGridKey:   "sg-key",
		EmailJS:       config.EmailJSConfig{ServiceID: "s", PublicKey: "p"},
	}

	tests := []struct {
		provider string
		check    func(mailer.Sender) bool
	}{
		{config.ProviderEmailJS, func(s mailer.Sender) bool { _, ok := s.(*mailer.EmailJS); return ok }},
		{config.ProviderMailerSend, func(s mailer.Sender) bool { _, ok := s.(*mailer.MailerSend); return ok }},
		{config.ProviderSendGrid, func(s mailer.Sender) bool { _, ok := s.(*mailer.SendGrid); return ok }},
		{config.ProviderDev, func(s mailer.Sender) bool { _, ok := s.(*mailer.DevMailer); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := base
			cfg.Provider = tt.provider
			sender, err := mailer.New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if !tt.check(sender) {
				t.Fatalf("unexpected sender type %T", sender)
			}
		})
	}
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	tests := []config.EmailConfig{
		{Provider: config.ProviderEmailJS},
		{Provider: config.ProviderMailerSend, FromEmail: "from@example.com"},
		{Provider: config.ProviderSendGrid, SendGridKey: "k"},
		{Provider: "pigeon"},
	}
	for _, cfg := range tests {
		if _, err := mailer.New(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestDevMailer_NeverFails(t *testing.T) {
	err := mailer.NewDevMailer().Send(context.Background(), mailer.Message{
		TemplateID: "template_admin",
		Params:     map[string]string{"n": "Guest"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
}
