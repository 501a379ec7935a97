package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names. They are persisted in Redis, so renaming one strands queued tasks.
const (
	TaskPriceApprovalExpiry   = "verification.approval.expiry"
	TaskNotificationOutboxDue = "notification.outbox.due"
)

type PriceApprovalExpiryPayload struct {
	JobID uuid.UUID `json:"jobId"`
}

type NotificationOutboxDuePayload struct {
	OutboxID uuid.UUID `json:"outboxId"`
}

func NewPriceApprovalExpiryTask(p PriceApprovalExpiryPayload) (*asynq.Task, error) {
	return newTask(TaskPriceApprovalExpiry, p)
}

func NewNotificationOutboxDueTask(p NotificationOutboxDuePayload) (*asynq.Task, error) {
	return newTask(TaskNotificationOutboxDue, p)
}

func newTask[P any](typename string, payload P) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typename, err)
	}
	return asynq.NewTask(typename, data), nil
}

// decodePayload unmarshals a task payload. A payload that cannot be decoded
// will never succeed, so the error is marked to skip asynq's retries.
func decodePayload[P any](task *asynq.Task) (P, error) {
	var payload P
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}
