package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingSweeper struct {
	calls int
	err   error
}

func (s *recordingSweeper) Sweep(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestPromotionSweepJobHandle(t *testing.T) {
	sweeper := &recordingSweeper{}
	job := NewPromotionSweepJob(sweeper, nil)

	task, err := NewPromotionSweepTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, sweeper.calls)

	// Sweep failures propagate so asynq retries the task.
	sweeper.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))
}

func TestPromotionSweepJobSkipsMalformedPayload(t *testing.T) {
	sweeper := &recordingSweeper{}
	job := NewPromotionSweepJob(sweeper, nil)

	task := asynq.NewTask(TaskPromotionSweep, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sweeper.calls)
}

func TestEnqueueSweepEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewSweepClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(nil, client, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promo-sweep", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "task_id")
	require.Contains(t, rec.Body.String(), QueueDefault)
}

func TestEnqueueSweepUnavailableWithoutClient(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/promo-sweep", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
