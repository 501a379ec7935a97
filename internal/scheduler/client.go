// Package scheduler runs deferred and periodic work: approval expiry tasks and
// outbox delivery through asynq, plus cron sweeps that back them up.
package scheduler

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"jobflow_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues deferred work. A nil *Client accepts calls and does nothing,
// for deployments without Redis.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, queue, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt), queue: queue}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleApprovalExpiry enqueues an expiry check for jobID at runAt.
// Scheduling the same deadline twice is not an error.
func (c *Client) ScheduleApprovalExpiry(ctx context.Context, jobID uuid.UUID, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewPriceApprovalExpiryTask(PriceApprovalExpiryPayload{JobID: jobID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID(approvalExpiryTaskID(jobID, runAt)),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func approvalExpiryTaskID(jobID uuid.UUID, runAt time.Time) string {
	return fmt.Sprintf("approval-expiry:%s:%d", jobID, runAt.Unix())
}

// redisConnOpt turns REDIS_URL into asynq options plus the queue name.
// rediss:// URLs keep the TLS settings go-redis derives from them.
func redisConnOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, string, error) {
	if cfg.GetRedisURL() == "" {
		return asynq.RedisClientOpt{}, "", errors.New("REDIS_URL is not set")
	}
	parsed, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, "", fmt.Errorf("parse REDIS_URL: %w", err)
	}

	tlsCfg := parsed.TLSConfig
	if cfg.GetRedisTLSInsecure() {
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		} else {
			tlsCfg = tlsCfg.Clone()
		}
		tlsCfg.InsecureSkipVerify = true
	}

	opt := asynq.RedisClientOpt{
		Addr:      parsed.Addr,
		Username:  parsed.Username,
		Password:  parsed.Password,
		DB:        parsed.DB,
		TLSConfig: tlsCfg,
	}
	return opt, cmp.Or(cfg.GetAsynqQueueName(), "default"), nil
}
