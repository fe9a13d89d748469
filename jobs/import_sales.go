package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/MRAMOS343/moncar-api/internal/importer"
	jobmetrics "github.com/MRAMOS343/moncar-api/internal/jobs"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SalesImporter is the slice of the importer service the job needs.
type SalesImporter interface {
	ImportSalesBatch(ctx context.Context, records []importer.Record) (importer.BatchResult, error)
}

// ImportSalesJob applies sales batches queued by the async endpoint.
type ImportSalesJob struct {
	Service SalesImporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewImportSalesJob wires dependencies for the import handler.
func NewImportSalesJob(service SalesImporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ImportSalesJob {
	return &ImportSalesJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle decodes the queued records and runs them through the importer.
// Payloads that can never succeed skip the retry queue.
func (j *ImportSalesJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("import sales: handler not configured")
	}
	var payload ImportSalesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("import sales: decode payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskImportSales)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	records, err := importer.DecodeRecords(payload.Records, "ventas")
	if err != nil {
		resultErr = fmt.Errorf("import sales: %v: %w", err, asynq.SkipRetry)
		return resultErr
	}
	res, err := j.Service.ImportSalesBatch(ctx, records)
	if err != nil {
		j.log().Error("import sales batch", slog.String("requested_by", payload.RequestedBy), slog.Any("error", err))
		if errors.Is(err, shared.ErrValidation) {
			resultErr = fmt.Errorf("import sales: %v: %w", err, asynq.SkipRetry)
			return resultErr
		}
		resultErr = err
		return resultErr
	}

	batchID := ""
	if res.BatchID != nil {
		batchID = res.BatchID.String()
	}
	j.log().Info("async sales batch applied",
		slog.String("batch_id", batchID),
		slog.String("requested_by", payload.RequestedBy),
		slog.Int("ok", res.OkCount),
		slog.Int("dup", res.DupCount),
		slog.Int("errors", res.ErrorCount))
	return resultErr
}

func (j *ImportSalesJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ImportSalesJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskImportSales))
	}
	return slog.Default().With(slog.String("job", TaskImportSales))
}
