package app

import (
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/MRAMOS343/moncar-api/internal/importer"
	jobmetrics "github.com/MRAMOS343/moncar-api/internal/jobs"
	"github.com/MRAMOS343/moncar-api/jobs"
)

// RedisOpt returns the asynq connection settings.
func (c *Config) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr}
}

// NewSyncWorker registers the sync task handlers and the retention cron.
func NewSyncWorker(cfg *Config, service *importer.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) (*jobs.Worker, error) {
	importJob := jobs.NewImportSalesJob(service, logger, metrics)
	pruneJob := jobs.NewPruneBatchesJob(service, cfg.SyncAuditRetention, logger, metrics)

	pruneTask, err := jobs.NewPruneBatchesTask()
	if err != nil {
		return nil, err
	}
	var cron []jobs.CronRegistration
	if cfg.PruneCron != "" && cfg.SyncAuditRetention > 0 {
		cron = append(cron, jobs.CronRegistration{Spec: cfg.PruneCron, Task: pruneTask})
	}

	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskImportSales, Handler: importJob.Handle},
			{Type: jobs.TaskPruneBatches, Handler: pruneJob.Handle},
		},
		Cron: cron,
	})
}
