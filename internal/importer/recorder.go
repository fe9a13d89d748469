package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder is the Batch Audit Recorder. Audit rows are diagnostic, so write
// failures are logged and never reach the caller.
type Recorder struct {
	store   BatchStore
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewRecorder builds a Recorder.
func NewRecorder(store BatchStore, metrics *Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// RecordBatch persists one summary row for a processed batch.
func (r *Recorder) RecordBatch(ctx context.Context, batchID uuid.UUID, source string, entity Entity, res BatchResult) {
	rec := BatchRecord{
		ID:         batchID,
		Source:     source,
		Entity:     entity,
		TotalItems: res.Total(),
		OkCount:    res.OkCount,
		DupCount:   res.DupCount,
		ErrorCount: res.ErrorCount,
		Errors:     res.Errors,
		CreatedAt:  r.now(),
	}
	if err := r.store.InsertBatch(ctx, rec); err != nil {
		r.metrics.auditFailure("batch")
		r.logger.Error("record sync batch",
			slog.String("batch_id", batchID.String()),
			slog.String("source", source),
			slog.Any("error", err))
	}
}
