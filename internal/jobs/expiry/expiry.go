package expiry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type staleIntentExpirer interface {
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job sweeps pending intents whose provider session went silent. A stale
// pending row blocks re-purchase of the same course, so it must eventually
// fail even if the provider's expiry event never arrives.
type Job struct {
	intents   staleIntentExpirer
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(intents staleIntentExpirer, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		intents:   intents,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.intents == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.intents.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expire stale pending intents: %w", err)
	}
	if rows > 0 {
		j.logger.Info("stale pending intents expired", zap.Int64("expired", rows))
	}

	return nil
}
