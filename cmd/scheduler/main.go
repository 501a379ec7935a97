// Command scheduler runs the asynq worker, the outbox dispatcher and the cron
// sweeps for approval expiry and parts reminders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobflow_backend/internal/events"
	"jobflow_backend/internal/jobs"
	"jobflow_backend/internal/notification"
	"jobflow_backend/internal/parts"
	"jobflow_backend/internal/scheduler"
	"jobflow_backend/internal/verification"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/db"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	pool, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	reg := metrics.NewRegistry()
	val := validator.New()
	jobsRepo := jobs.NewModule(pool, log).Repository()

	notifications, err := notification.Assemble(pool, jobsRepo, cfg, reg, log)
	if err != nil {
		return err
	}
	notifications.RegisterHandlers(bus)

	// The worker republishes due tasks on the bus; these modules handle them.
	verificationModule := verification.NewModule(pool, jobsRepo, cfg, bus, val, verification.Options{Metrics: reg}, log)
	verificationModule.RegisterHandlers(bus)
	partsModule, err := parts.NewModule(pool, jobsRepo, cfg, bus, val, reg, log)
	if err != nil {
		return fmt.Errorf("parts module: %w", err)
	}

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		return fmt.Errorf("outbox dispatcher: %w", err)
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	sweeper := scheduler.NewSweeper(verificationModule.Service(), partsModule.Service(), log)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}
	defer sweeper.Stop()

	worker, err := scheduler.NewWorker(cfg, bus, log)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	worker.Run(ctx)
	bus.Wait()
	return nil
}
