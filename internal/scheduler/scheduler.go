// Package scheduler runs the recurring billing sweep on a cron schedule:
// populate the cycle sequence, enact due costs, then retire finished
// one-off costs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/observability/metrics"
	"github.com/hearthshare/hearth/internal/orchestrator"
)

type Scheduler struct {
	cfg     Config
	log     *zap.Logger
	clock   clock.Clock
	orch    *orchestrator.Orchestrator
	metrics *metrics.Metrics
	cron    *cron.Cron
}

func New(cfg Config, log *zap.Logger, clk clock.Clock, orch *orchestrator.Orchestrator, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cfg:     cfg.withDefaults(),
		log:     log.Named("scheduler"),
		clock:   clk,
		orch:    orch,
		metrics: m,
		cron:    cron.New(),
	}
}

// Start registers the billing sweep and starts the cron engine. The first
// sweep runs immediately so a freshly deployed house catches up without
// waiting for the next tick.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.runSweep); err != nil {
		return err
	}
	go s.runSweep()
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.cfg.Spec))
	return nil
}

// Stop halts the cron engine and waits for a running sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunSweep performs one full billing sweep. It is exposed so the HTTP
// layer can trigger an immediate run.
func (s *Scheduler) RunSweep(ctx context.Context) error {
	asOf := s.clock.Now()

	if err := s.runJob(ctx, metrics.JobPopulateCycles, func(ctx context.Context) error {
		created, err := s.orch.PopulateBillingCycles(ctx)
		if err != nil {
			return err
		}
		s.metrics.AddCyclesCreated(created)
		return nil
	}); err != nil {
		return err
	}

	if err := s.runJob(ctx, metrics.JobEnactCosts, func(ctx context.Context) error {
		result, err := s.orch.EnactCosts(ctx, asOf)
		if err != nil {
			return err
		}
		for i := 0; i < result.CostsEnacted; i++ {
			s.metrics.IncCostEnacted()
		}
		for i := 0; i < result.SkippedAlreadyEnacted; i++ {
			s.metrics.IncEnactSkip(metrics.EnactSkipAlreadyEnacted)
		}
		for i := 0; i < result.SkippedNotEnactable; i++ {
			s.metrics.IncEnactSkip(metrics.EnactSkipNotEnactable)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.runJob(ctx, metrics.JobDisableDone, func(ctx context.Context) error {
		_, err := s.orch.DisableCompletedCosts(ctx, asOf)
		return err
	}); err != nil {
		return err
	}

	return s.runJob(ctx, metrics.JobSendStatements, func(ctx context.Context) error {
		sent, err := s.orch.NotifyHousemates(ctx)
		if err != nil {
			return err
		}
		s.metrics.AddStatementsSent(sent)
		return nil
	})
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if err := s.RunSweep(ctx); err != nil {
		s.log.Error("billing sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runJob(ctx context.Context, job string, fn func(context.Context) error) error {
	s.metrics.IncJobRun(job)
	started := time.Now()
	err := fn(ctx)
	s.metrics.ObserveJobDuration(job, time.Since(started))
	if err != nil {
		s.metrics.IncJobError(job, err)
		s.log.Error("job failed", zap.String("job", job), zap.Error(err))
	}
	return err
}
