package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobflow_backend/internal/email"
	"jobflow_backend/internal/notification/outbox"
	"jobflow_backend/platform/apperr"

	"github.com/google/uuid"
)

const (
	maxOutboxRetryAttempts = 5
	outboxRetryBaseDelay   = time.Minute
	outboxRetryMaxDelay    = time.Hour
)

// errNoRecipient marks a row whose contact has no address for its channel. The
// row is closed as delivered.
var errNoRecipient = errors.New("no recipient")

type sendFunc func(ctx context.Context, payload json.RawMessage) error

func channelKey(kind, template string) string { return kind + "/" + template }

func (m *Module) channel(rec outbox.Record) (sendFunc, bool) {
	switch channelKey(rec.Kind, rec.Template) {
	case channelKey(outbox.KindEmail, outbox.TemplateEmailSend):
		return m.sendEmail, true
	case channelKey(outbox.KindWhatsApp, outbox.TemplateWhatsAppSend):
		return m.sendWhatsApp, true
	}
	return nil, false
}

// deliver makes one attempt at the outbox row. Delivery failures are recorded
// on the row, which the dispatcher picks up again when it is due. An error is
// returned only when the row could not be loaded or claimed, so asynq retries
// the task itself.
func (m *Module) deliver(ctx context.Context, id uuid.UUID) error {
	if m.outbox == nil {
		m.log.Debug("outbox not configured; dropping due notification", "outboxId", id)
		return nil
	}
	rec, err := m.outbox.GetByID(ctx, id)
	if err != nil {
		m.log.Error("load outbox record", "outboxId", id, "error", err)
		return err
	}
	if rec.Done() {
		m.log.Debug("outbox record already final", "outboxId", id, "status", rec.Status)
		return nil
	}

	send, ok := m.channel(rec)
	if !ok {
		m.fail(ctx, rec, fmt.Errorf("unsupported outbox channel %s", channelKey(rec.Kind, rec.Template)))
		return nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}
	rec.Attempts++

	err = send(ctx, rec.Payload)
	switch {
	case err == nil, errors.Is(err, errNoRecipient):
		_ = m.outbox.MarkSucceeded(ctx, rec.ID)
		m.metrics.ObserveOutboxDelivery(rec.Kind, true)
		m.log.Info("outbox delivered", "outboxId", rec.ID.String(), "kind", rec.Kind, "sent", err == nil)
		return nil
	case apperr.Is(err, apperr.KindValidation), rec.Attempts >= maxOutboxRetryAttempts:
		m.fail(ctx, rec, err)
		return nil
	default:
		return m.retryLater(ctx, rec, err)
	}
}

func (m *Module) fail(ctx context.Context, rec outbox.Record, cause error) {
	if err := m.outbox.MarkFailed(ctx, rec.ID, cause.Error()); err != nil {
		m.log.Error("mark outbox failed", "outboxId", rec.ID.String(), "error", err)
	}
	m.metrics.ObserveOutboxDelivery(rec.Kind, false)
	m.log.NotificationFailed(rec.Kind, rec.Template, cause)
	m.log.Warn("outbox record failed", "outboxId", rec.ID.String(), "attempts", rec.Attempts)
}

func (m *Module) retryLater(ctx context.Context, rec outbox.Record, cause error) error {
	m.metrics.ObserveOutboxDelivery(rec.Kind, false)
	at := m.now().UTC().Add(computeOutboxRetryDelay(rec.Attempts))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, at, cause.Error()); err != nil {
		m.log.Error("reschedule outbox record", "outboxId", rec.ID.String(), "error", err)
		m.fail(ctx, rec, cause)
		return nil
	}
	m.log.Warn("outbox delivery deferred", "outboxId", rec.ID.String(), "kind", rec.Kind,
		"attempt", rec.Attempts, "retryAt", at, "error", cause)
	return nil
}

// computeOutboxRetryDelay doubles from one minute per attempt, capped at an hour.
func computeOutboxRetryDelay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	if attempt > 7 {
		return outboxRetryMaxDelay
	}
	return min(outboxRetryBaseDelay<<(attempt-1), outboxRetryMaxDelay)
}

func (m *Module) sendEmail(ctx context.Context, raw json.RawMessage) error {
	var p emailSendOutboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperr.Validation("invalid email payload: " + err.Error())
	}
	switch {
	case strings.TrimSpace(p.ToEmail) == "":
		return errNoRecipient
	case strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.BodyHTML) == "":
		return apperr.Validation("email payload needs subject and bodyHtml")
	case m.email == nil:
		return apperr.Validation("email channel not configured")
	}
	return m.email.Send(ctx, email.Message{To: p.ToEmail, Subject: p.Subject, HTML: p.BodyHTML})
}

func (m *Module) sendWhatsApp(ctx context.Context, raw json.RawMessage) error {
	var p whatsAppSendOutboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return apperr.Validation("invalid whatsapp payload: " + err.Error())
	}
	switch {
	case strings.TrimSpace(p.PhoneNumber) == "":
		return errNoRecipient
	case m.whatsapp == nil:
		return apperr.Validation("whatsapp channel not configured")
	}
	return m.whatsapp.SendMessage(ctx, p.PhoneNumber, p.Message)
}
