package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Service runs batch imports and serves the sync audit views.
type Service struct {
	repo     RepositoryPort
	mapper   *Mapper
	engine   *Engine
	recorder *Recorder
	cursors  *CursorTracker
	metrics  *Metrics
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg Config, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		mapper:   NewMapper(),
		engine:   NewEngine(repo, EngineConfig{ForcedBranchID: cfg.ForcedBranchID}),
		recorder: NewRecorder(repo, metrics, logger),
		cursors:  NewCursorTracker(repo, metrics, logger),
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ImportSalesBatch applies a batch of sales, each in its own transaction.
func (s *Service) ImportSalesBatch(ctx context.Context, records []Record) (BatchResult, error) {
	source, err := s.precheck(EntitySales, records)
	if err != nil || len(records) == 0 {
		return emptyResult(), err
	}
	sales, err := s.mapper.MapSales(records)
	if err != nil {
		return emptyResult(), err
	}
	return runBatch(ctx, s, EntitySales, source, sales,
		func(sale Sale) (string, int64) { return strconv.FormatInt(sale.ID, 10), sale.ID },
		s.engine.UpsertSale), nil
}

// ImportCancellationsBatch applies a batch of cancellations.
func (s *Service) ImportCancellationsBatch(ctx context.Context, records []Record) (BatchResult, error) {
	source, err := s.precheck(EntityCancellations, records)
	if err != nil || len(records) == 0 {
		return emptyResult(), err
	}
	cancellations, err := s.mapper.MapCancellations(records)
	if err != nil {
		return emptyResult(), err
	}
	return runBatch(ctx, s, EntityCancellations, source, cancellations,
		func(c Cancellation) (string, int64) { return strconv.FormatInt(c.ID, 10), c.ID },
		s.engine.UpsertCancellation), nil
}

// ImportInventoryBatch applies counted stock positions. Inventory has no
// numeric natural id, so it is audited but never advances a cursor.
func (s *Service) ImportInventoryBatch(ctx context.Context, records []Record) (BatchResult, error) {
	source, err := s.precheck(EntityInventory, records)
	if err != nil || len(records) == 0 {
		return emptyResult(), err
	}
	items, err := s.mapper.MapInventory(records)
	if err != nil {
		return emptyResult(), err
	}
	return runBatch(ctx, s, EntityInventory, source, items,
		func(item InventoryItem) (string, int64) { return item.SKU + "@" + item.Location, 0 },
		s.engine.UpsertInventory), nil
}

// precheck fails fast on configuration and size before any item is touched.
func (s *Service) precheck(entity Entity, records []Record) (string, error) {
	source := s.cfg.Sources.For(entity)
	if source == "" {
		return "", fmt.Errorf("%w: no source configured for %s", ErrConfiguration, entity)
	}
	if s.cfg.MaxBatchItems > 0 && len(records) > s.cfg.MaxBatchItems {
		verr := &ValidationError{}
		verr.add(-1, "", fmt.Sprintf("el lote excede %d registros", s.cfg.MaxBatchItems))
		return "", verr
	}
	return source, nil
}

func emptyResult() BatchResult {
	return BatchResult{Errors: []ItemError{}}
}

// runBatch applies items sequentially. A failing item rolls back alone and
// is reported; the loop always continues. Once validation passed the call
// cannot fail, so the client's disconnect does not stop the remaining items.
func runBatch[T any](
	ctx context.Context,
	s *Service,
	entity Entity,
	source string,
	items []T,
	naturalID func(T) (string, int64),
	apply func(context.Context, T) (Outcome, error),
) BatchResult {
	start := s.now()
	ctx = context.WithoutCancel(ctx)
	res := emptyResult()

	for i, item := range items {
		id, n := naturalID(item)
		if n > res.MaxID {
			res.MaxID = n
		}

		outcome, err := apply(ctx, item)
		if err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, ItemError{NaturalID: id, Index: i, Reason: Reason(err)})
			s.logger.Warn("sync item rejected",
				slog.String("entity", string(entity)),
				slog.String("natural_id", id),
				slog.Any("error", err))
			continue
		}
		switch outcome {
		case OutcomeInserted:
			res.OkCount++
		case OutcomeUpdated:
			res.DupCount++
		}
	}

	batchID := uuid.New()
	res.BatchID = &batchID
	s.recorder.RecordBatch(ctx, batchID, source, entity, res)
	s.cursors.AdvanceCursor(ctx, source, res.MaxID)
	elapsed := s.now().Sub(start)
	s.metrics.observeBatch(entity, res, elapsed)
	s.logger.Info("sync batch processed",
		slog.String("batch_id", batchID.String()),
		slog.String("entity", string(entity)),
		slog.String("source", source),
		slog.Int("ok", res.OkCount),
		slog.Int("dup", res.DupCount),
		slog.Int("errors", res.ErrorCount),
		slog.Duration("elapsed", elapsed))
	return res
}

// ListBatches pages through audit records.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]BatchRecord, int, error) {
	return s.repo.ListBatches(ctx, filter)
}

// GetBatch returns one audit record.
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (BatchRecord, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListCursors returns every source watermark.
func (s *Service) ListCursors(ctx context.Context) ([]Cursor, error) {
	return s.repo.ListCursors(ctx)
}

// PruneBatches removes audit records older than retention.
func (s *Service) PruneBatches(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.repo.PruneBatches(ctx, s.now().Add(-retention))
}
