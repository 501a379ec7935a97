package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobflow_backend/internal/notification/outbox"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	outboxPollInterval = 2 * time.Second
	outboxClaimBatch   = 50
	// Covers failures to load or claim the row; delivery retries live on the row.
	outboxTaskMaxRetry = 3
)

// outboxClaimer is the slice of the outbox repository the dispatcher drives.
type outboxClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

// NotificationOutboxDispatcher hands claimed outbox rows to asynq, one task per
// row, due at the row's run_at. Rows it cannot enqueue go back to pending.
type NotificationOutboxDispatcher struct {
	client *asynq.Client
	queue  string
	repo   outboxClaimer
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*NotificationOutboxDispatcher, error) {
	opt, queue, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return newDispatcher(asynq.NewClient(opt), queue, outbox.New(pool), log), nil
}

func newDispatcher(client *asynq.Client, queue string, repo outboxClaimer, log *logger.Logger) *NotificationOutboxDispatcher {
	return &NotificationOutboxDispatcher{client: client, queue: queue, repo: repo, log: log}
}

func (d *NotificationOutboxDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Run polls until ctx is cancelled.
func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Warn("outbox dispatch failed", "error", err)
		}
	}
}

// DispatchOnce claims one batch and enqueues it, returning how many rows made it
// onto the queue. The task id is derived from the outbox id and its attempt
// count: a row claimed twice after a crash is still delivered once, while a
// row rescheduled after a failed attempt gets a fresh task.
func (d *NotificationOutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	records, err := d.repo.ClaimPending(ctx, outboxClaimBatch)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	var errs []error
	for _, rec := range records {
		if err := d.enqueue(ctx, rec); err != nil {
			msg := err.Error()
			if markErr := d.repo.MarkPending(ctx, rec.ID, &msg); markErr != nil {
				errs = append(errs, markErr)
			}
			errs = append(errs, err)
			continue
		}
		enqueued++
	}
	return enqueued, errors.Join(errs...)
}

func (d *NotificationOutboxDispatcher) enqueue(ctx context.Context, rec outbox.Record) error {
	task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{OutboxID: rec.ID})
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(outboxTaskID(rec)),
		asynq.ProcessAt(rec.RunAt),
		asynq.Queue(d.queue),
		asynq.MaxRetry(outboxTaskMaxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func outboxTaskID(rec outbox.Record) string {
	return fmt.Sprintf("outbox:%s:%d", rec.ID, rec.Attempts)
}
