package importer

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type storedSale struct {
	header   Sale
	total    decimal.Decimal
	lines    []SaleLine
	payments []Payment
}

type memoryState struct {
	sales         map[int64]storedSale
	cancellations map[int64]Cancellation
	inventory     map[string]InventoryItem
}

func (s memoryState) clone() memoryState {
	return memoryState{
		sales:         maps.Clone(s.sales),
		cancellations: maps.Clone(s.cancellations),
		inventory:     maps.Clone(s.inventory),
	}
}

// memoryRepo mimics the PostgreSQL repository: every WithTx works on a copy
// that only replaces the committed state when fn succeeds.
type memoryRepo struct {
	state    memoryState
	products map[string]bool
	batches  []BatchRecord
	cursors  map[string]Cursor

	txCount        int
	failBatchWrite error
	failCursor     error
}

func newMemoryRepo(skus ...string) *memoryRepo {
	products := map[string]bool{}
	for _, sku := range skus {
		products[sku] = true
	}
	return &memoryRepo{
		state: memoryState{
			sales:         map[int64]storedSale{},
			cancellations: map[int64]Cancellation{},
			inventory:     map[string]InventoryItem{},
		},
		products: products,
		cursors:  map[string]Cursor{},
	}
}

type memoryTx struct {
	repo  *memoryRepo
	state memoryState
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.txCount++
	tx := &memoryTx{repo: r, state: r.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (tx *memoryTx) UpsertSaleHeader(_ context.Context, sale Sale) (bool, error) {
	current, exists := tx.state.sales[sale.ID]
	header := sale
	header.Lines = nil
	header.Payments = nil
	current.header = header
	current.total = sale.Total()
	tx.state.sales[sale.ID] = current
	return !exists, nil
}

func (tx *memoryTx) ApplyPendingCancellation(_ context.Context, saleID int64) error {
	sale, ok := tx.state.sales[saleID]
	if !ok {
		return nil
	}
	for _, c := range tx.state.cancellations {
		if c.SaleID != nil && *c.SaleID == saleID {
			sale.header = mergeCancellation(sale.header, c)
			tx.state.sales[saleID] = sale
			return nil
		}
	}
	return nil
}

func (tx *memoryTx) DeleteSaleLines(_ context.Context, saleID int64) error {
	sale := tx.state.sales[saleID]
	sale.lines = nil
	tx.state.sales[saleID] = sale
	return nil
}

func (tx *memoryTx) InsertSaleLines(_ context.Context, saleID int64, lines []SaleLine) error {
	sale := tx.state.sales[saleID]
	for _, line := range lines {
		if !tx.repo.products[line.SKU] {
			return &pgconn.PgError{
				Code:           "23503",
				Message:        "insert or update on table \"lineas_venta\" violates foreign key constraint",
				ConstraintName: "lineas_venta_sku_fkey",
				Detail:         "Key (sku)=(" + line.SKU + ") is not present in table \"productos\".",
			}
		}
		sale.lines = append(sale.lines, line)
	}
	tx.state.sales[saleID] = sale
	return nil
}

func (tx *memoryTx) DeleteSalePayments(_ context.Context, saleID int64) error {
	sale := tx.state.sales[saleID]
	sale.payments = nil
	tx.state.sales[saleID] = sale
	return nil
}

func (tx *memoryTx) InsertSalePayments(_ context.Context, saleID int64, payments []Payment) error {
	sale := tx.state.sales[saleID]
	for _, p := range payments {
		if !p.Method.Valid() {
			return &pgconn.PgError{Code: "23514", ConstraintName: "pagos_venta_metodo_check"}
		}
		sale.payments = append(sale.payments, p)
	}
	tx.state.sales[saleID] = sale
	return nil
}

func (tx *memoryTx) UpsertCancellation(_ context.Context, c Cancellation) (bool, error) {
	current, exists := tx.state.cancellations[c.ID]
	if !exists {
		tx.state.cancellations[c.ID] = c
		return true, nil
	}
	current.SaleID = coalesce(c.SaleID, current.SaleID)
	current.IssuedAt = coalesce(c.IssuedAt, current.IssuedAt)
	current.CancelledAt = coalesce(c.CancelledAt, current.CancelledAt)
	current.Reason = coalesce(c.Reason, current.Reason)
	current.ReplacementFolio = coalesce(c.ReplacementFolio, current.ReplacementFolio)
	current.ExternalDocID = coalesce(c.ExternalDocID, current.ExternalDocID)
	tx.state.cancellations[c.ID] = current
	return false, nil
}

func (tx *memoryTx) MarkSaleCancelled(_ context.Context, c Cancellation) (int64, error) {
	if c.SaleID == nil {
		return 0, nil
	}
	sale, ok := tx.state.sales[*c.SaleID]
	if !ok {
		return 0, nil
	}
	sale.header = mergeCancellation(sale.header, c)
	tx.state.sales[*c.SaleID] = sale
	return 1, nil
}

func (tx *memoryTx) UpsertInventory(_ context.Context, item InventoryItem) (bool, error) {
	key := item.SKU + "@" + item.Location
	current, exists := tx.state.inventory[key]
	if exists {
		if item.UnitCost == nil {
			item.UnitCost = current.UnitCost
		}
		if item.CountedAt == nil {
			item.CountedAt = current.CountedAt
		}
	}
	tx.state.inventory[key] = item
	return !exists, nil
}

func mergeCancellation(header Sale, c Cancellation) Sale {
	header.Cancelled = true
	header.CancelledAt = coalesce(c.CancelledAt, header.CancelledAt)
	header.CancelReason = coalesce(c.Reason, header.CancelReason)
	header.ReplacementFolio = coalesce(c.ReplacementFolio, header.ReplacementFolio)
	header.ExternalDocID = coalesce(c.ExternalDocID, header.ExternalDocID)
	return header
}

func coalesce[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

func (r *memoryRepo) InsertBatch(_ context.Context, rec BatchRecord) error {
	if r.failBatchWrite != nil {
		return r.failBatchWrite
	}
	r.batches = append(r.batches, rec)
	return nil
}

func (r *memoryRepo) ListBatches(_ context.Context, filter BatchFilter) ([]BatchRecord, int, error) {
	var out []BatchRecord
	for _, b := range r.batches {
		if filter.Source != "" && b.Source != filter.Source {
			continue
		}
		if filter.Entity != "" && b.Entity != filter.Entity {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetBatch(_ context.Context, id uuid.UUID) (BatchRecord, error) {
	for _, b := range r.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return BatchRecord{}, ErrBatchNotFound
}

func (r *memoryRepo) PruneBatches(_ context.Context, before time.Time) (int64, error) {
	kept := r.batches[:0]
	var pruned int64
	for _, b := range r.batches {
		if b.CreatedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, b)
	}
	r.batches = kept
	return pruned, nil
}

func (r *memoryRepo) AdvanceCursor(_ context.Context, source string, candidate int64) error {
	if r.failCursor != nil {
		return r.failCursor
	}
	current := r.cursors[source]
	if candidate > current.LastID {
		current.LastID = candidate
	}
	current.Source = source
	current.UpdatedAt = time.Now()
	r.cursors[source] = current
	return nil
}

func (r *memoryRepo) ListCursors(_ context.Context) ([]Cursor, error) {
	out := make([]Cursor, 0, len(r.cursors))
	for _, c := range r.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

var errBoom = errors.New("boom")
