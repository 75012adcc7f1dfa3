package faqanalysis

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler triggers runs on a fixed interval, the in-process stand-in for the nightly job.
type Scheduler struct {
	svc        Service
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
}

// NewScheduler builds a Scheduler. A non-positive interval disables it.
func NewScheduler(svc Service, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		svc:        svc,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger.With("component", "faqanalysis.scheduler"),
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.interval <= 0 {
		return
	}
	s.logger.Info("faq analysis scheduler started", "interval", s.interval.String(), "runOnStart", s.runOnStart)
	if s.runOnStart {
		s.tick(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("faq analysis scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.svc.Run(ctx, TriggerSchedule)
	if errors.Is(err, ErrDisabled) {
		s.logger.Debug("scheduled faq analysis skipped, analysis disabled")
		return
	}
	if err != nil {
		s.logger.Warn("scheduled faq analysis failed", "error", err)
		return
	}
	s.logger.Info("scheduled faq analysis finished",
		"runId", report.RunID,
		"clusters", report.Summary.TotalClusters,
		"gaps", report.Summary.TotalGaps,
		"stale", report.Stale,
	)
}
