package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobflow_backend/platform/apperr"
)

type testEmailConfig struct {
	enabled  bool
	smtpHost string
}

func (c testEmailConfig) GetEmailEnabled() bool       { return c.enabled }
func (c testEmailConfig) GetBrevoAPIKey() string      { return "key" }
func (c testEmailConfig) GetSMTPHost() string         { return c.smtpHost }
func (c testEmailConfig) GetSMTPPort() int            { return 587 }
func (c testEmailConfig) GetSMTPUsername() string     { return "" }
func (c testEmailConfig) GetSMTPPassword() string     { return "" }
func (c testEmailConfig) GetEmailFromName() string    { return "Jobflow" }
func (c testEmailConfig) GetEmailFromAddress() string { return "noreply@example.com" }

func TestNewSenderSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  testEmailConfig
		want string
	}{
		{"disabled", testEmailConfig{}, "noop"},
		{"brevo", testEmailConfig{enabled: true}, "brevo"},
		{"smtp wins", testEmailConfig{enabled: true, smtpHost: "smtp.example.com"}, "smtp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got string
			switch sender.(type) {
			case NoopSender:
				got = "noop"
			case *BrevoSender:
				got = "brevo"
			case *SMTPSender:
				got = "smtp"
			}
			if got != tt.want {
				t.Fatalf("expected %s sender, got %T", tt.want, sender)
			}
		})
	}
}

func TestRenderNoticeEscapes(t *testing.T) {
	html, err := RenderNotice(Notice{
		Heading:    "Parts needed",
		Paragraphs: []string{`Description: <b>"valve"</b>`},
		Details:    []Detail{{Label: "Estimated cost", Value: "$45.00"}},
		CTALabel:   "Open job",
		CTAURL:     "https://app.example.com/jobs/1",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<b>") {
		t.Fatalf("expected paragraph text to be escaped")
	}
	for _, want := range []string{"Parts needed", "$45.00", "https://app.example.com/jobs/1"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected %q in rendered html", want)
		}
	}
}

func TestBrevoSend(t *testing.T) {
	var got brevoEmailRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewBrevoSender("secret", Address{Name: "Jobflow", Email: "noreply@example.com"})
	sender.endpoint = srv.URL
	if err := sender.Send(context.Background(), Message{To: "pm@example.com", Subject: "Subject", HTML: "<p>hi</p>"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if apiKey != "secret" || got.Subject != "Subject" || len(got.To) != 1 || got.To[0].Email != "pm@example.com" {
		t.Fatalf("unexpected request key=%q body=%+v", apiKey, got)
	}
}

func TestBrevoSendClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{"rejected payload", http.StatusBadRequest, apperr.KindValidation},
		{"throttled", http.StatusTooManyRequests, apperr.KindUpstream},
		{"server error", http.StatusBadGateway, apperr.KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			sender := NewBrevoSender("secret", Address{Email: "noreply@example.com"})
			sender.endpoint = srv.URL
			err := sender.Send(context.Background(), Message{To: "pm@example.com", Subject: "Subject", HTML: "<p>hi</p>"})
			if !apperr.Is(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), "nope") {
				t.Fatalf("expected response body in error, got %v", err)
			}
		})
	}
}

func TestSMTPBuildRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: Address{Name: "Jobflow", Email: "noreply@example.com"}})
	if _, err := s.build(Message{To: "not-an-address", Subject: "Subject", HTML: "<p>hi</p>"}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.build(Message{To: "pm@example.com", Subject: "Subject", HTML: "<p>hi</p>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
