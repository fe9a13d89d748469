package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MRAMOS343/moncar-api/internal/importer"
	"github.com/MRAMOS343/moncar-api/jobs"
)

// Enqueuer is the part of asynq.Client the CLI uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector is the part of asynq.Inspector the CLI uses.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// JobsCLI wraps manual management helpers for the sync queue.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
	closers   []io.Closer
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(opt)
	inspector := asynq.NewInspector(opt)
	return &JobsCLI{client: client, inspector: inspector, closers: []io.Closer{inspector, client}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// TriggerPrune enqueues an immediate audit retention run. retentionHours of
// zero keeps the worker's configured retention.
func (c *JobsCLI) TriggerPrune(ctx context.Context, retentionHours int) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	body, err := json.Marshal(jobs.PruneBatchesPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, asynq.NewTask(jobs.TaskPruneBatches, body, asynq.Queue(jobs.QueueDefault)))
}

// EnqueueSalesFile queues a JSON file of sales for the worker, the same way
// the async endpoint does. Records are validated before anything is queued.
func (c *JobsCLI) EnqueueSalesFile(ctx context.Context, path, requestedBy string, at time.Time) (*asynq.TaskInfo, int, error) {
	if c == nil || c.client == nil {
		return nil, 0, errors.New("jobs cli: client not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	records, err := importer.DecodeRecords(raw, "ventas")
	if err != nil {
		return nil, 0, err
	}
	if _, err := importer.NewMapper().MapSales(records); err != nil {
		return nil, 0, err
	}
	task, err := jobs.NewImportSalesTask(records, requestedBy, at)
	if err != nil {
		return nil, 0, err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	return info, len(records), err
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("jobs cli: queue info: %w", err)
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}
