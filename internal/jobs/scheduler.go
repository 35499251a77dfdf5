// Package jobs runs periodic forecast maintenance: refitting occupancy
// models, flushing them to disk and warming the forecast cache.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/robfig/cron/v3"
)

// Forecaster is the part of the forecast engine the jobs drive.
type Forecaster interface {
	RefitAll(ctx context.Context) (int, error)
	SaveModels() error
	Warm(ctx context.Context, hours int) error
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	engine    Forecaster
	warmHours int
	timeout   time.Duration
	logger    *log.Logger
}

// NewScheduler registers the maintenance job on spec (standard cron syntax
// or descriptors such as "@hourly").
func NewScheduler(engine Forecaster, spec string, warmHours int, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.New("jobs")
	}
	s := &Scheduler{
		cron:      cron.New(),
		engine:    engine,
		warmHours: warmHours,
		timeout:   5 * time.Minute,
		logger:    logger,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Errorf("forecast maintenance failed: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule forecast maintenance %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce refits every model, flushes the registry and warms the cache.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	n, err := s.engine.RefitAll(ctx)
	if err != nil {
		return fmt.Errorf("refit: %w", err)
	}
	if err := s.engine.SaveModels(); err != nil {
		return fmt.Errorf("save models: %w", err)
	}
	if s.warmHours > 0 {
		if err := s.engine.Warm(ctx, s.warmHours); err != nil {
			return fmt.Errorf("warm cache: %w", err)
		}
	}
	s.logger.Infoj(log.JSON{"msg": "forecast maintenance done", "models": n, "took": time.Since(start).String()})
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
