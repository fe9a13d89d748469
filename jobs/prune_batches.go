package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/MRAMOS343/moncar-api/internal/jobs"
)

// BatchPruner deletes audit rows older than a retention window.
type BatchPruner interface {
	PruneBatches(ctx context.Context, retention time.Duration) (int64, error)
}

// PruneBatchesJob enforces the batch audit retention.
type PruneBatchesJob struct {
	Service   BatchPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewPruneBatchesJob constructs the retention job.
func NewPruneBatchesJob(service BatchPruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *PruneBatchesJob {
	return &PruneBatchesJob{Service: service, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle removes expired audit rows.
func (j *PruneBatchesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("prune batches: handler not configured")
	}
	var payload PruneBatchesPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}

	tracker := j.metrics().Track(TaskPruneBatches)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log()
	if retention <= 0 {
		logger.Info("batch audit retention disabled")
		return resultErr
	}
	pruned, err := j.Service.PruneBatches(ctx, retention)
	if err != nil {
		resultErr = err
		logger.Error("prune batch audit", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPruned(pruned)
	logger.Info("pruned batch audit", slog.Int64("rows", pruned), slog.Duration("retention", retention))
	return resultErr
}

func (j *PruneBatchesJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PruneBatchesJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPruneBatches))
	}
	return slog.Default().With(slog.String("job", TaskPruneBatches))
}
