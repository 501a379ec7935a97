package scheduler

import (
	"context"
	"fmt"
	"time"

	"jobflow_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

const (
	defaultApprovalSweepSpec = "@every 1m"
	defaultPartsSweepSpec    = "@every 15m"
	sweepTimeout             = 30 * time.Second
)

// ApprovalSweeper expires price approvals whose deadline has passed.
type ApprovalSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// PartsReminder re-notifies parts requests that have waited too long.
type PartsReminder interface {
	SweepStale(ctx context.Context) (int, error)
}

// Sweeper wraps robfig/cron and runs the periodic backstop sweeps.
type Sweeper struct {
	cron      *cron.Cron
	approvals ApprovalSweeper
	parts     PartsReminder
	log       *logger.Logger
}

func NewSweeper(approvals ApprovalSweeper, parts PartsReminder, log *logger.Logger) *Sweeper {
	return &Sweeper{
		cron:      cron.New(cron.WithLogger(cron.DefaultLogger)),
		approvals: approvals,
		parts:     parts,
		log:       log,
	}
}

// Start registers the sweeps and starts the cron loop.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.approvals != nil {
		if _, err := s.cron.AddFunc(defaultApprovalSweepSpec, func() {
			s.run(ctx, "approval_expiry", s.approvals.SweepExpired)
		}); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
	}
	if s.parts != nil {
		if _, err := s.cron.AddFunc(defaultPartsSweepSpec, func() {
			s.run(ctx, "parts_reminder", s.parts.SweepStale)
		}); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("sweeper started", "approvals", defaultApprovalSweepSpec, "parts", defaultPartsSweepSpec)
	return nil
}

// Stop waits for running sweeps to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, name string, sweep func(context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := sweep(runCtx)
	if err != nil {
		s.log.Error("sweep failed", "sweep", name, "processed", n, "error", err)
		return
	}
	if n > 0 {
		s.log.Info("sweep completed", "sweep", name, "processed", n)
	}
}
