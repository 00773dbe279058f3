package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically drops abandoned in-memory exam sessions. A user
// who navigates away mid-exam leaves the runtime state behind; it is
// reclaimed here, while any persisted row stays non-completed and is
// simply excluded from history.
type Janitor struct {
	exams   *ExamService
	maxIdle time.Duration
	logger  *zap.Logger
}

// NewJanitor creates a janitor. maxIdle must exceed the longest exam
// time limit, otherwise a live timed session could be reclaimed.
func NewJanitor(exams *ExamService, maxIdle time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		exams:   exams,
		maxIdle: maxIdle,
		logger:  logger,
	}
}

// Start runs the cleanup loop until the context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("session janitor started", zap.Duration("max_idle", j.maxIdle))

	c := cron.New()

	_, err := c.AddFunc("@every 5m", func() {
		if removed := j.exams.RemoveStale(j.maxIdle); removed > 0 {
			j.logger.Info("reclaimed abandoned sessions", zap.Int("removed", removed))
		}
	})
	if err != nil {
		j.logger.Error("failed to schedule cleanup", zap.Error(err))
		return
	}

	c.Start()

	<-ctx.Done()

	c.Stop()
	j.logger.Info("session janitor stopped")
}
