package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPromotionSweep reconciles promotion statuses with their windows.
	TaskPromotionSweep = "promo:sweep"
)

// PromotionSweepPayload carries the enqueue time for observability.
type PromotionSweepPayload struct {
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewPromotionSweepTask constructs an Asynq task.
func NewPromotionSweepTask() (*asynq.Task, error) {
	data, err := json.Marshal(PromotionSweepPayload{EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPromotionSweep, data), nil
}
