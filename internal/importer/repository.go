package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TxRepository exposes the statements one atomic upsert is made of.
type TxRepository interface {
	// UpsertSaleHeader writes every scalar column last-write-wins and reports
	// whether the row was newly inserted.
	UpsertSaleHeader(ctx context.Context, sale Sale) (bool, error)
	// ApplyPendingCancellation folds a previously received cancellation onto
	// the freshly written header.
	ApplyPendingCancellation(ctx context.Context, saleID int64) error
	DeleteSaleLines(ctx context.Context, saleID int64) error
	InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error
	DeleteSalePayments(ctx context.Context, saleID int64) error
	InsertSalePayments(ctx context.Context, saleID int64, payments []Payment) error
	// UpsertCancellation coalesce-merges by natural id.
	UpsertCancellation(ctx context.Context, c Cancellation) (bool, error)
	// MarkSaleCancelled flips the referenced header when it exists and returns
	// the number of rows touched.
	MarkSaleCancelled(ctx context.Context, c Cancellation) (int64, error)
	UpsertInventory(ctx context.Context, item InventoryItem) (bool, error)
}

// TxRunner is the Per-Batch Transaction Coordinator as seen by the engine:
// fn runs inside one transaction which commits only when fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// BatchStore persists and reads batch audit records.
type BatchStore interface {
	InsertBatch(ctx context.Context, rec BatchRecord) error
	ListBatches(ctx context.Context, filter BatchFilter) ([]BatchRecord, int, error)
	GetBatch(ctx context.Context, id uuid.UUID) (BatchRecord, error)
	PruneBatches(ctx context.Context, before time.Time) (int64, error)
}

// CursorStore persists source watermarks.
type CursorStore interface {
	AdvanceCursor(ctx context.Context, source string, candidate int64) error
	ListCursors(ctx context.Context) ([]Cursor, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	TxRunner
	BatchStore
	CursorStore
}
