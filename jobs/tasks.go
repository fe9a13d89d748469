package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MRAMOS343/moncar-api/internal/importer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskImportSales applies a sales batch accepted by the async endpoint.
	TaskImportSales = "sync:import_sales"
	// TaskPruneBatches deletes expired batch audit rows.
	TaskPruneBatches = "sync:prune_batches"
)

// ImportSalesPayload carries the raw records exactly as the POS sent them.
type ImportSalesPayload struct {
	Records     json.RawMessage `json:"records"`
	RequestedBy string          `json:"requested_by,omitempty"`
	AcceptedAt  time.Time       `json:"accepted_at"`
}

// NewImportSalesTask builds the async import task. Imports are idempotent, so
// retries only ever re-apply the same rows.
func NewImportSalesTask(records []importer.Record, requestedBy string, at time.Time) (*asynq.Task, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(ImportSalesPayload{Records: raw, RequestedBy: requestedBy, AcceptedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportSales, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// PruneBatchesPayload lets an operator override the configured retention.
type PruneBatchesPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewPruneBatchesTask builds the retention task used by the daily cron.
func NewPruneBatchesTask() (*asynq.Task, error) {
	body, err := json.Marshal(PruneBatchesPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPruneBatches, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
