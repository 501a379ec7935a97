package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"jobflow_backend/internal/email"
	"jobflow_backend/internal/events"
	jobsdomain "jobflow_backend/internal/jobs/domain"
	"jobflow_backend/internal/notification/outbox"
	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/logger"

	"github.com/google/uuid"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://app.example.com/" }

type memOutbox struct {
	records map[uuid.UUID]*outbox.Record
	order   []uuid.UUID
	retryAt map[uuid.UUID]time.Time
}

func newMemOutbox() *memOutbox {
	return &memOutbox{records: map[uuid.UUID]*outbox.Record{}, retryAt: map[uuid.UUID]time.Time{}}
}

func (o *memOutbox) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	o.records[id] = &outbox.Record{ID: id, Kind: p.Kind, Template: p.Template, Payload: payload, RunAt: p.RunAt, Status: outbox.StatusPending}
	o.order = append(o.order, id)
	return id, nil
}

func (o *memOutbox) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := o.records[id]
	if !ok {
		return outbox.Record{}, errors.New("not found")
	}
	return *rec, nil
}

func (o *memOutbox) MarkProcessing(_ context.Context, id uuid.UUID) error {
	o.records[id].Status = outbox.StatusProcessing
	o.records[id].Attempts++
	return nil
}

func (o *memOutbox) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	o.records[id].Status = outbox.StatusSucceeded
	return nil
}

func (o *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	o.records[id].Status = outbox.StatusFailed
	return nil
}

func (o *memOutbox) ScheduleRetry(_ context.Context, id uuid.UUID, runAt time.Time, _ string) error {
	o.records[id].Status = outbox.StatusPending
	o.records[id].RunAt = runAt
	o.retryAt[id] = runAt
	return nil
}

func (o *memOutbox) byKind(kind string) []*outbox.Record {
	var out []*outbox.Record
	for _, id := range o.order {
		if o.records[id].Kind == kind {
			out = append(out, o.records[id])
		}
	}
	return out
}

type stubJobs struct {
	job          jobsdomain.Job
	participants jobsdomain.Participants
}

func (s stubJobs) GetByID(context.Context, uuid.UUID) (jobsdomain.Job, error) { return s.job, nil }
func (s stubJobs) GetParticipants(context.Context, jobsdomain.Job) (jobsdomain.Participants, error) {
	return s.participants, nil
}

type sentEmail struct{ to, subject, body string }

type testSender struct {
	sent []sentEmail
	err  error
}

func (s *testSender) Send(_ context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{msg.To, msg.Subject, msg.HTML})
	return nil
}

type testWhatsApp struct {
	sent []string
}

func (w *testWhatsApp) SendMessage(_ context.Context, phone, message string) error {
	w.sent = append(w.sent, phone+": "+message)
	return nil
}

var (
	customer = jobsdomain.Contact{UserID: uuid.New(), Name: "Dana", Email: "dana@example.com", Phone: "+16502530000"}
	pro      = jobsdomain.Contact{UserID: uuid.New(), Name: "Sam", Email: "sam@example.com"}
	manager  = jobsdomain.Contact{UserID: uuid.New(), Name: "Lee", Email: "lee@pm.example.com"}
)

type fixture struct {
	module   *Module
	outbox   *memOutbox
	sender   *testSender
	whatsapp *testWhatsApp
}

func newFixture(p jobsdomain.Participants) fixture {
	ob := newMemOutbox()
	sender := &testSender{}
	wa := &testWhatsApp{}
	m := New(Deps{
		Outbox:   ob,
		Jobs:     stubJobs{job: jobsdomain.Job{ID: uuid.New()}, participants: p},
		Email:    sender,
		WhatsApp: wa,
		Config:   testNotificationConfig{},
		Log:      logger.New("development"),
	})
	return fixture{module: m, outbox: ob, sender: sender, whatsapp: wa}
}

func withPro() jobsdomain.Participants {
	p := pro
	return jobsdomain.Participants{Customer: customer, Pro: &p}
}

func TestPriceVerifiedOnlyWhenAutoApproved(t *testing.T) {
	f := newFixture(withPro())
	jobID := uuid.New()

	_ = f.module.Handle(context.Background(), events.PriceVerificationRecorded{JobID: jobID, AutoApproved: false, OriginalPriceCents: 20000, VerifiedPriceCents: 24000})
	if len(f.outbox.order) != 0 {
		t.Fatalf("expected no rows for a change that needs approval, got %d", len(f.outbox.order))
	}

	_ = f.module.Handle(context.Background(), events.PriceVerificationRecorded{JobID: jobID, AutoApproved: true, OriginalPriceCents: 20000, VerifiedPriceCents: 22000})
	emails := f.outbox.byKind(outbox.KindEmail)
	texts := f.outbox.byKind(outbox.KindWhatsApp)
	if len(emails) != 1 || len(texts) != 1 {
		t.Fatalf("expected one email and one whatsapp row, got %d and %d", len(emails), len(texts))
	}

	var payload whatsAppSendOutboxPayload
	if err := json.Unmarshal(texts[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(payload.Message, "within our 10% accuracy guarantee") || !strings.Contains(payload.Message, "Sam verified") {
		t.Fatalf("unexpected message %q", payload.Message)
	}

	var mail emailSendOutboxPayload
	if err := json.Unmarshal(emails[0].Payload, &mail); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if mail.ToEmail != customer.Email || !strings.Contains(mail.BodyHTML, "https://app.example.com/jobs/"+jobID.String()) {
		t.Fatalf("unexpected email payload %+v", mail)
	}
}

func TestPartsFlaggedGoesToPayers(t *testing.T) {
	tests := []struct {
		name   string
		payers []jobsdomain.Contact
		want   []string
	}{
		{"customer pays", nil, []string{customer.Email}},
		{"business members pay", []jobsdomain.Contact{manager}, []string{manager.Email}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := withPro()
			p.Payers = tt.payers
			f := newFixture(p)
			_ = f.module.Handle(context.Background(), events.PartsRequestFlagged{JobID: uuid.New(), Description: "water heater valve"})

			emails := f.outbox.byKind(outbox.KindEmail)
			if len(emails) != len(tt.want) {
				t.Fatalf("expected %d emails, got %d", len(tt.want), len(emails))
			}
			for i, rec := range emails {
				var mail emailSendOutboxPayload
				_ = json.Unmarshal(rec.Payload, &mail)
				if mail.ToEmail != tt.want[i] {
					t.Fatalf("expected %s, got %s", tt.want[i], mail.ToEmail)
				}
				if !strings.Contains(mail.BodyHTML, "TBD") {
					t.Fatalf("expected TBD cost in body")
				}
			}
		})
	}
}

func TestRejectionNotifiesBothParties(t *testing.T) {
	f := newFixture(withPro())
	_ = f.module.Handle(context.Background(), events.PriceApprovalResolved{
		JobID:              uuid.New(),
		Outcome:            events.ApprovalOutcomeRejected,
		OriginalPriceCents: 20000,
		VerifiedPriceCents: 24000,
		JobCancelled:       true,
	})
	emails := f.outbox.byKind(outbox.KindEmail)
	if len(emails) != 2 {
		t.Fatalf("expected customer and pro emails, got %d", len(emails))
	}
	var proMail emailSendOutboxPayload
	_ = json.Unmarshal(emails[1].Payload, &proMail)
	if proMail.ToEmail != pro.Email || !strings.Contains(proMail.BodyHTML, "price adjustment rejected") {
		t.Fatalf("unexpected pro email %+v", proMail)
	}
}

func TestInstalledDeduplicatesRecipients(t *testing.T) {
	p := withPro()
	p.Payers = []jobsdomain.Contact{customer, manager}
	f := newFixture(p)
	_ = f.module.Handle(context.Background(), events.PartsRequestInstalled{JobID: uuid.New()})
	if got := len(f.outbox.byKind(outbox.KindEmail)); got != 2 {
		t.Fatalf("expected 2 distinct email recipients, got %d", got)
	}
}

func TestOutboxDelivery(t *testing.T) {
	f := newFixture(withPro())
	_ = f.module.Handle(context.Background(), events.PartsRequestInstalled{JobID: uuid.New()})

	for _, id := range f.outbox.order {
		if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id}); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if f.outbox.records[id].Status != outbox.StatusSucceeded {
			t.Fatalf("expected succeeded, got %s", f.outbox.records[id].Status)
		}
	}
	if len(f.sender.sent) != 1 || len(f.whatsapp.sent) != 1 {
		t.Fatalf("expected one email and one whatsapp, got %d and %d", len(f.sender.sent), len(f.whatsapp.sent))
	}
	if !strings.HasSuffix(f.whatsapp.sent[0], "Parts installed! Your job has resumed.") {
		t.Fatalf("unexpected whatsapp %q", f.whatsapp.sent[0])
	}

	// Re-delivery of a finished row is a no-op.
	if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: f.outbox.order[0]}); err != nil {
		t.Fatalf("redeliver: %v", err)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("expected no second send")
	}
}

func TestOutboxRetryThenFail(t *testing.T) {
	f := newFixture(jobsdomain.Participants{Customer: jobsdomain.Contact{UserID: uuid.New(), Email: "x@example.com"}})
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.module.now = func() time.Time { return now }
	f.sender.err = errors.New("smtp down")

	_ = f.module.Handle(context.Background(), events.PartsRequestInstalled{JobID: uuid.New()})
	id := f.outbox.order[0]

	// The row carries the retry; the task itself completes.
	if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id}); err != nil {
		t.Fatalf("expected failure recorded on the row, got %v", err)
	}
	if f.outbox.records[id].Status != outbox.StatusPending || !f.outbox.retryAt[id].Equal(now.Add(time.Minute)) {
		t.Fatalf("expected retry in 1m, got %s at %v", f.outbox.records[id].Status, f.outbox.retryAt[id])
	}

	for i := 1; i < maxOutboxRetryAttempts; i++ {
		_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})
	}
	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed after %d attempts, got %s", maxOutboxRetryAttempts, f.outbox.records[id].Status)
	}
}

func TestOutboxRejectedMessageIsNotRetried(t *testing.T) {
	f := newFixture(jobsdomain.Participants{Customer: jobsdomain.Contact{UserID: uuid.New(), Email: "x@example.com"}})
	f.sender.err = apperr.Validation("brevo status 400: invalid email")

	_ = f.module.Handle(context.Background(), events.PartsRequestInstalled{JobID: uuid.New()})
	id := f.outbox.order[0]

	_ = f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id})
	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed on first attempt, got %s", f.outbox.records[id].Status)
	}
	if _, retried := f.outbox.retryAt[id]; retried {
		t.Fatalf("rejected message must not be rescheduled")
	}
}

func TestUnsupportedOutboxRecord(t *testing.T) {
	f := newFixture(withPro())
	id, _ := f.outbox.Insert(context.Background(), outbox.InsertParams{Kind: "sms", Template: "sms_send", Payload: map[string]string{}})
	if err := f.module.Handle(context.Background(), events.NotificationOutboxDue{OutboxID: id}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.outbox.records[id].Status != outbox.StatusFailed {
		t.Fatalf("expected failed, got %s", f.outbox.records[id].Status)
	}
}

func TestComputeOutboxRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{10, outboxRetryMaxDelay},
	}
	for _, tt := range tests {
		if got := computeOutboxRetryDelay(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}
