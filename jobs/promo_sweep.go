package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// PromotionSweeper describes the behaviour required to reconcile promotion
// statuses with their validity windows.
type PromotionSweeper interface {
	Sweep(ctx context.Context) error
}

// PromotionSweepJob runs the periodic status reconciliation. Statuses are
// derived data; the sweep only keeps the stored column aligned for listing
// queries, so a missed run is harmless.
type PromotionSweepJob struct {
	Sweeper PromotionSweeper
	Logger  *slog.Logger
}

// NewPromotionSweepJob constructs the job handler.
func NewPromotionSweepJob(sweeper PromotionSweeper, logger *slog.Logger) *PromotionSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromotionSweepJob{Sweeper: sweeper, Logger: logger}
}

// Handle processes TaskPromotionSweep tasks.
func (j *PromotionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PromotionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	started := time.Now()
	if err := j.Sweeper.Sweep(ctx); err != nil {
		j.Logger.Error("promotion sweep failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("promotion sweep done",
		slog.Duration("took", time.Since(started)),
		slog.Time("enqueued_at", payload.EnqueuedAt))
	return nil
}
