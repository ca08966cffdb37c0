package scheduler

import (
	"context"
	"sync"
	"time"

	"alivecheck-backend/internal/engine"
	"alivecheck-backend/internal/logging"
)

// Scheduler drives the engine's two periodic sweeps: overdue detection on a
// coarse cadence and escalation stepping on a fine one. Both run once at
// startup so a restart never waits a full interval to catch up.
type Scheduler struct {
	engine             *engine.Engine
	logger             *logging.Logger
	detectionInterval  time.Duration
	escalationInterval time.Duration
}

func New(eng *engine.Engine, logger *logging.Logger, detectionInterval, escalationInterval time.Duration) *Scheduler {
	return &Scheduler{
		engine:             eng,
		logger:             logger,
		detectionInterval:  detectionInterval,
		escalationInterval: escalationInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go s.loop(ctx, wg, "overdue detection", s.detectionInterval, func(now time.Time) {
		s.engine.RunOverdueSweep(ctx, now)
	})
	go s.loop(ctx, wg, "escalation", s.escalationInterval, func(now time.Time) {
		s.engine.RunEscalationSweep(ctx, now)
	})
}

func (s *Scheduler) loop(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, sweep func(time.Time)) {
	defer wg.Done()
	s.logger.Infof("Started %s sweep every %v", name, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(time.Now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Infof("Stopped %s sweep", name)
			return
		case t := <-ticker.C:
			sweep(t)
		}
	}
}
