package sched

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/config"
	"github.com/cenownik/pricewatch/internal/domain/settings"
)

// Service ties the cron job to the sweeper and is the single entry point the
// control surface talks to.
type Service struct {
	Cron    *CronJob
	Sweeper *Sweeper

	ctx context.Context
	log *zap.Logger
}

func NewService(cfg config.Scrape, store settings.Store, sweeper *Sweeper, log *zap.Logger) *Service {
	s := &Service{
		Sweeper: sweeper,
		log:     log.With(zap.String("component", "sched.service")),
	}
	s.Cron = NewCronJob(store, cfg.DefaultCron, cfg.MinInterval, s.runScheduled, log)
	return s
}

// Start installs the persisted (or default) cron job. ctx outlives Start: it
// is the root every scheduled sweep runs under.
func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	return s.Cron.Start(ctx)
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Service) Stop() {
	<-s.Cron.Stop().Done()
}

func (s *Service) runScheduled() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.log.Info("starting scheduled price sweep")
	if err := s.Sweeper.Sweep(ctx); err != nil &&
		!errors.Is(err, ErrSweepInProgress) && !errors.Is(err, context.Canceled) {
		s.log.Error("scheduled sweep failed", zap.Error(err))
	}
}

// TriggerSweep starts an asynchronous sweep under the service's root
// context, exactly as a cron tick would.
func (s *Service) TriggerSweep() {
	go s.runScheduled()
}

func (s *Service) ProcessOffer(ctx context.Context, id int64) error {
	return s.Sweeper.Process(ctx, id)
}

func (s *Service) CronExpression() string {
	return s.Cron.Expression()
}

func (s *Service) SetCronExpression(ctx context.Context, expr string) error {
	return s.Cron.SetExpression(ctx, expr)
}
