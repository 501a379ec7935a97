package scheduler

import (
	"context"
	"time"

	"jobflow_backend/internal/events"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 10

// Worker turns due tasks into synchronous bus events so the owning module
// does the work and a handler error makes asynq retry.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	opt, queue, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	w := &Worker{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queue: 1},
		}),
		mux: asynq.NewServeMux(),
		bus: bus,
		log: log,
	}
	w.mux.Use(w.logTasks)
	w.mux.HandleFunc(TaskPriceApprovalExpiry, w.handlePriceApprovalExpiry)
	w.mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	return w, nil
}

func (w *Worker) handlePriceApprovalExpiry(ctx context.Context, task *asynq.Task) error {
	p, err := decodePayload[PriceApprovalExpiryPayload](task)
	if err != nil {
		return err
	}
	return w.publish(ctx, events.PriceApprovalExpiryDue{BaseEvent: events.NewBaseEvent(), JobID: p.JobID})
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	p, err := decodePayload[NotificationOutboxDuePayload](task)
	if err != nil {
		return err
	}
	return w.publish(ctx, events.NotificationOutboxDue{BaseEvent: events.NewBaseEvent(), OutboxID: p.OutboxID})
}

func (w *Worker) publish(ctx context.Context, e events.Event) error {
	if w.bus == nil {
		return nil
	}
	return w.bus.PublishSync(ctx, e)
}

func (w *Worker) logTasks(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, task)
		if err != nil && w.log != nil {
			w.log.Warn("task failed",
				"task", task.Type(),
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
		}
		return err
	})
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
