package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// IdleSessionAbandoner is implemented by the interview service
type IdleSessionAbandoner interface {
	AbandonIdle(ctx context.Context, idle time.Duration) (int, error)
}

// ReaperConfig contains configuration for the session reaper
type ReaperConfig struct {
	Schedule string        // cron expression, e.g. "@every 15m"
	IdleTTL  time.Duration // sessions untouched for longer are abandoned
	Timeout  time.Duration // bound on a single run
}

// SessionReaper periodically abandons in-progress sessions that went idle
type SessionReaper struct {
	service IdleSessionAbandoner
	config  ReaperConfig
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewSessionReaper(service IdleSessionAbandoner, config ReaperConfig, logger *zap.Logger) *SessionReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	return &SessionReaper{
		service: service,
		config:  config,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules the reaper. A zero idle TTL disables it.
func (r *SessionReaper) Start() error {
	if r.config.IdleTTL <= 0 || r.config.Schedule == "" {
		r.logger.Info("session reaper disabled")
		return nil
	}

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("session reaper run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session reaper: %w", err)
	}

	r.cron.Start()
	r.logger.Info("session reaper started",
		zap.String("schedule", r.config.Schedule),
		zap.Duration("idle_ttl", r.config.IdleTTL))
	return nil
}

// Stop waits for a running job to finish or ctx to expire
func (r *SessionReaper) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn("session reaper stop timed out")
	}
}

// RunOnce performs a single sweep and returns the number of sessions abandoned
func (r *SessionReaper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()
	count, err := r.service.AbandonIdle(ctx, r.config.IdleTTL)
	if err != nil {
		return count, fmt.Errorf("failed to abandon idle sessions: %w", err)
	}
	if count > 0 {
		r.logger.Info("abandoned idle sessions",
			zap.Int("count", count),
			zap.Duration("elapsed", time.Since(start)))
	}
	return count, nil
}
