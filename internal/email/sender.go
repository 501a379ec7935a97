// Package email delivers rendered notification emails through Brevo or a
// plain SMTP relay.
//
// Senders classify failures with apperr: Validation for messages that can never
// be delivered (bad address, rejected payload), Upstream for failures worth a
// retry.
package email

import (
	"context"

	"jobflow_backend/platform/config"
)

// Message is one rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSender drops every message. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }

// NewSender picks the transport from cfg. SMTP wins over Brevo.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	from := Address{Name: cfg.GetEmailFromName(), Email: cfg.GetEmailFromAddress()}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.GetSMTPHost(),
			Port:     cfg.GetSMTPPort(),
			Username: cfg.GetSMTPUsername(),
			Password: cfg.GetSMTPPassword(),
			From:     from,
		}), nil
	}
	return NewBrevoSender(cfg.GetBrevoAPIKey(), from), nil
}

// Address is a display name plus mailbox.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}
