package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/diagnosis/reservations/internal/http/handlers"
	"github.com/diagnosis/reservations/internal/platform/idempotency"
	"github.com/diagnosis/reservations/internal/platform/mailer"
	"github.com/diagnosis/reservations/internal/reservation"
	mw "github.com/diagnosis/reservations/pkg/middleware"
)

// ---------- Mocks ----------

type mockSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *mockSender) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ---------- Helpers ----------

var fixedNow = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

func newServer(t *testing.T, sender *mockSender) *httptest.Server {
	t.Helper()
	ctrl, err := reservation.NewController(sender, nil, reservation.Config{
		AdminTemplateID: "template_admin",
		UserTemplateID:  "template_user",
		Admin:           mailer.Recipient{Email: "host@example.com"},
		Location:        time.UTC,
	}, reservation.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	flash, err := handlers.NewFlash(nil, nil)
	if err != nil {
		t.Fatalf("NewFlash: %v", err)
	}
	h, err := handlers.NewRouter(ctrl, flash, handlers.RouterConfig{
		AllowedOrigins: []string{"https://bistro.example"},
		Store:          idempotency.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var b []byte
	switch v := body.(type) {
	case string:
		b = []byte(v)
	default:
		b, _ = json.Marshal(v)
	}
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func validPayload() map[string]any {
	return map[string]any{
		"user_name":        "Ada Lovelace",
		"user_email":       "ada@example.com",
		"phone":            "+1 555 0100",
		"reservation_date": "2026-10-20",
		"reservation_time": "12:00",
		"party_size":       4,
		"seating":          "Outdoor",
		"occasion":         "Birthday",
		"gdpr":             true,
		"newsletter":       false,
	}
}

func validForm() url.Values {
	return url.Values{
		"user_name":        {"Ada Lovelace"},
		"user_email":       {"ada@example.com"},
		"reservation_date": {"2026-10-20"},
		"reservation_time": {"12:00"},
		"party_size":       {"4"},
		"seating":          {"Indoor"},
		"occasion":         {"None"},
		"gdpr":             {"on"},
	}
}

func decodeSubmission(t *testing.T, body []byte) handlers.SubmissionResponse {
	t.Helper()
	var out handlers.SubmissionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, body)
	}
	return out
}

// ---------- JSON API ----------

func TestAPI_SubmitSuccess(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)

	resp, body := postJSON(t, srv.URL+"/api/reservations", validPayload(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	got := decodeSubmission(t, body)
	want := handlers.SubmissionResponse{State: "success", Message: reservation.MsgSent, ClearForm: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if sender.count() != 2 {
		t.Fatalf("sent %d emails, want 2", sender.count())
	}
	if p := sender.sent[0].Params; p["party_size"] != "4" || p["gdpr"] != "yes" || p["newsletter"] != "no" {
		t.Fatalf("numeric and boolean JSON values not coerced: %v", p)
	}
}

func TestAPI_ValidationError(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)

	payload := validPayload()
	payload["reservation_date"] = "2026-10-18"
	resp, body := postJSON(t, srv.URL+"/api/reservations", payload, nil)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decodeSubmission(t, body)
	want := handlers.SubmissionResponse{
		State:   "error",
		Message: reservation.MsgPastDateTime,
		Code:    reservation.CodePastDateTime,
		Field:   "reservation_time",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if sender.count() != 0 {
		t.Fatal("no email may be sent on validation failure")
	}
}

func TestAPI_TransportError(t *testing.T) {
	sender := &mockSender{err: errors.New("relay said 412: private key leaked")}
	srv := newServer(t, sender)

	resp, body := postJSON(t, srv.URL+"/api/reservations", validPayload(), nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decodeSubmission(t, body)
	if got.Message != reservation.MsgSendFailed || got.Code != "DELIVERY_FAILED" || got.ClearForm {
		t.Fatalf("unexpected response %+v", got)
	}
	if strings.Contains(string(body), "private key") {
		t.Fatal("relay details leaked to client")
	}
	if sender.count() != 1 {
		t.Fatalf("guest email must not follow a failed admin send, sent %d", sender.count())
	}
}

func TestAPI_Honeypot(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)

	payload := validPayload()
	payload["website"] = "http://spam.example"
	resp, body := postJSON(t, srv.URL+"/api/reservations", payload, nil)

	got := decodeSubmission(t, body)
	if resp.StatusCode != http.StatusOK || got.State != "success" || !got.ClearForm {
		t.Fatalf("honeypot should look like success: %d %+v", resp.StatusCode, got)
	}
	if sender.count() != 0 {
		t.Fatal("honeypot submission must not send email")
	}
}

func TestAPI_BadJSON(t *testing.T) {
	srv := newServer(t, &mockSender{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"user_name":`},
		{"object value", `{"party_size":{"n":4}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, srv.URL+"/api/reservations", tt.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestAPI_IdempotentReplay(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)
	headers := map[string]string{mw.IdempotencyHeader: "res-42"}

	first, firstBody := postJSON(t, srv.URL+"/api/reservations", validPayload(), headers)
	second, secondBody := postJSON(t, srv.URL+"/api/reservations", validPayload(), headers)

	if first.StatusCode != http.StatusOK || second.StatusCode != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.StatusCode, second.StatusCode)
	}
	if second.Header.Get(mw.ReplayedHeader) != "true" {
		t.Fatal("second response should be a replay")
	}
	if !bytes.Equal(firstBody, secondBody) {
		t.Fatalf("replayed body differs: %s vs %s", firstBody, secondBody)
	}
	if sender.count() != 2 {
		t.Fatalf("duplicate submit re-sent emails: %d", sender.count())
	}
}

func TestAPI_Constraints(t *testing.T) {
	srv := newServer(t, &mockSender{})

	resp, err := http.Get(srv.URL + "/api/reservations/constraints")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["min_date"] != "2026-10-19" || got["open_time"] != "11:00" || got["close_time"] != "22:00" {
		t.Fatalf("unexpected constraints %v", got)
	}
	if got["step_seconds"] != float64(300) || got["max_party_size"] != float64(20) {
		t.Fatalf("unexpected constraints %v", got)
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	srv := newServer(t, &mockSender{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/reservations", nil)
	req.Header.Set("Origin", "https://bistro.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://bistro.example" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

// ---------- HTML form ----------

func TestForm_Show(t *testing.T) {
	srv := newServer(t, &mockSender{})

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`min="2026-10-19"`,
		`min="11:00" max="22:00" step="300"`,
		`name="website"`,
		`value="No preference"`,
		`<option value="Anniversary"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("form is missing %q", want)
		}
	}
}

func TestForm_SubmitRedirectsWithFlash(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)
	client := noRedirectClient()

	resp, err := client.PostForm(srv.URL+"/reservations", validForm())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("status = %d location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if sender.count() != 2 {
		t.Fatalf("sent %d emails, want 2", sender.count())
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	for _, c := range resp.Cookies() {
		req.AddCookie(c)
	}
	page, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)

	if !strings.Contains(string(body), "Reservation request sent!") {
		t.Fatal("flash message not rendered after redirect")
	}
	if strings.Contains(string(body), "Ada Lovelace") {
		t.Fatal("form should be cleared after success")
	}
}

func TestForm_ValidationKeepsValues(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)

	form := validForm()
	form.Set("reservation_time", "23:30")
	form.Set("website", "")
	resp, err := noRedirectClient().PostForm(srv.URL+"/reservations", form)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(html, "Reservations are accepted from 11:00 to 22:00.") {
		t.Fatal("service hours message missing")
	}
	if !strings.Contains(html, `value="Ada Lovelace"`) || !strings.Contains(html, `value="23:30"`) {
		t.Fatal("submitted values should be kept on error")
	}
	if sender.count() != 0 {
		t.Fatal("no email may be sent on validation failure")
	}
}

func TestForm_TransportFailure(t *testing.T) {
	srv := newServer(t, &mockSender{err: errors.New("boom")})

	resp, err := noRedirectClient().PostForm(srv.URL+"/reservations", validForm())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Failed to send. Please try again.") {
		t.Fatal("generic failure message missing")
	}
}

func TestForm_HoneypotRedirectsWithoutSending(t *testing.T) {
	sender := &mockSender{}
	srv := newServer(t, sender)

	form := validForm()
	form.Set("website", "buy now")
	resp, err := noRedirectClient().PostForm(srv.URL+"/reservations", form)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if sender.count() != 0 {
		t.Fatal("honeypot submission must not send email")
	}
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	if _, err := handlers.NewRouter(nil, nil, handlers.RouterConfig{}); err == nil {
		t.Fatal("expected error for missing submitter")
	}
}

func TestAPI_UnknownEndpoint(t *testing.T) {
	srv := newServer(t, &mockSender{})

	resp, err := http.Get(srv.URL + "/api/tables")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusNotFound || got["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, got)
	}
}
