package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives periodic reconciliation runs for a fixed set of
// organizations. A failed run is logged and recorded by the reconciler; the
// schedule keeps ticking.
type Scheduler struct {
	Reconciler    *Reconciler
	Organizations []string
	Interval      time.Duration
	Logger        *slog.Logger
}

func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if s.Logger != nil {
		s.Logger.Info("reconciliation scheduler started", "interval", interval, "organizations", len(s.Organizations))
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, org := range s.Organizations {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Reconciler.RunScheduled(ctx, org); err != nil {
			if s.Logger != nil {
				s.Logger.Error("scheduled reconciliation failed", "organization_id", org, "error", err)
			}
		}
	}
}
