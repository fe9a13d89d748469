package importer

import (
	"context"
	"log/slog"
)

// CursorTracker is the Sync Cursor Tracker. The stored value only moves
// forward; a failed write is logged and the next batch catches it up.
type CursorTracker struct {
	store   CursorStore
	logger  *slog.Logger
	metrics *Metrics
}

// NewCursorTracker builds a CursorTracker.
func NewCursorTracker(store CursorStore, metrics *Metrics, logger *slog.Logger) *CursorTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CursorTracker{store: store, logger: logger, metrics: metrics}
}

// AdvanceCursor offers candidateMaxID as the new watermark of source.
func (t *CursorTracker) AdvanceCursor(ctx context.Context, source string, candidateMaxID int64) {
	if source == "" || candidateMaxID <= 0 {
		return
	}
	if err := t.store.AdvanceCursor(ctx, source, candidateMaxID); err != nil {
		t.metrics.auditFailure("cursor")
		t.logger.Error("advance sync cursor",
			slog.String("source", source),
			slog.Int64("candidate", candidateMaxID),
			slog.Any("error", err))
		return
	}
	t.metrics.observeCursor(source, candidateMaxID)
}
