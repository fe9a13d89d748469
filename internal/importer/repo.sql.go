package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MRAMOS343/moncar-api/internal/platform/db"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// RepositoryConfig selects the schema variant and per-transaction limits.
type RepositoryConfig struct {
	Schema           SchemaCapabilities
	StatementTimeout time.Duration
}

// Repository persists sync data in PostgreSQL.
type Repository struct {
	pool  *pgxpool.Pool
	opts  db.TxOptions
	caps  SchemaCapabilities
	stmts statements
}

// NewRepository constructs Repository. SQL text is fixed here for the
// configured schema version.
func NewRepository(pool *pgxpool.Pool, cfg RepositoryConfig) *Repository {
	return &Repository{
		pool: pool,
		opts: db.TxOptions{
			IsoLevel:         pgx.ReadCommitted,
			StatementTimeout: cfg.StatementTimeout,
		},
		caps:  cfg.Schema,
		stmts: buildStatements(cfg.Schema),
	}
}

type txRepository struct {
	tx    pgx.Tx
	caps  SchemaCapabilities
	stmts statements
}

// WithTx executes the callback inside one read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("importer repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, caps: r.caps, stmts: r.stmts})
	})
}

func (t *txRepository) UpsertSaleHeader(ctx context.Context, sale Sale) (bool, error) {
	args := []any{
		sale.ID, sale.IssuedAt, sale.BranchID, sale.RegisterID, sale.Series, sale.Folio,
		sale.Subtotal, sale.Tax, sale.Total(), sale.Cancelled, sale.CancelledAt,
		sale.CancelReason, sale.ReplacementFolio, sale.ExternalDocID,
	}
	if t.caps.OriginAudit {
		args = append(args,
			sale.Origin.ClientName, rawOrNil(sale.Origin.Raw), sale.Origin.StateCode,
			sale.Origin.User, sale.Origin.At,
		)
	}
	var inserted bool
	if err := t.tx.QueryRow(ctx, t.stmts.upsertSale, args...).Scan(&inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

const applyPendingCancellationSQL = `UPDATE ventas v SET
    cancelada = TRUE,
    fecha_cancelacion = COALESCE(c.fecha_cancelacion, v.fecha_cancelacion),
    motivo_cancelacion = COALESCE(c.motivo, v.motivo_cancelacion),
    folio_sustitucion = COALESCE(c.folio_sustitucion, v.folio_sustitucion),
    id_documento_externo = COALESCE(c.id_documento_externo, v.id_documento_externo)
FROM (
    SELECT fecha_cancelacion, motivo, folio_sustitucion, id_documento_externo
    FROM cancelaciones
    WHERE venta_id = $1
    ORDER BY updated_at DESC
    LIMIT 1
) c
WHERE v.venta_id = $1`

func (t *txRepository) ApplyPendingCancellation(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, applyPendingCancellationSQL, saleID)
	return err
}

func (t *txRepository) DeleteSaleLines(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM lineas_venta WHERE venta_id = $1`, saleID)
	return err
}

func (t *txRepository) InsertSaleLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		args := []any{
			saleID, line.Number, line.SKU, line.Quantity, line.UnitPrice, line.Discount,
			line.Amount, line.Tax, line.Location,
		}
		if t.caps.OriginAudit {
			args = append(args, line.OriginState, line.OriginUser)
		}
		batch.Queue(t.stmts.insertLine, args...)
	}
	return sendBatch(ctx, t.tx, batch)
}

func (t *txRepository) DeleteSalePayments(ctx context.Context, saleID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM pagos_venta WHERE venta_id = $1`, saleID)
	return err
}

func (t *txRepository) InsertSalePayments(ctx context.Context, saleID int64, payments []Payment) error {
	batch := &pgx.Batch{}
	for _, p := range payments {
		batch.Queue(`INSERT INTO pagos_venta (venta_id, idx, metodo, monto) VALUES ($1, $2, $3, $4)`,
			saleID, p.Index, string(p.Method), p.Amount)
	}
	return sendBatch(ctx, t.tx, batch)
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return results.Close()
}

const upsertCancellationSQL = `INSERT INTO cancelaciones (
    id_cancelacion_origen, venta_id, fecha_emision, fecha_cancelacion,
    motivo, folio_sustitucion, id_documento_externo
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id_cancelacion_origen) DO UPDATE SET
    venta_id = COALESCE(EXCLUDED.venta_id, cancelaciones.venta_id),
    fecha_emision = COALESCE(EXCLUDED.fecha_emision, cancelaciones.fecha_emision),
    fecha_cancelacion = COALESCE(EXCLUDED.fecha_cancelacion, cancelaciones.fecha_cancelacion),
    motivo = COALESCE(EXCLUDED.motivo, cancelaciones.motivo),
    folio_sustitucion = COALESCE(EXCLUDED.folio_sustitucion, cancelaciones.folio_sustitucion),
    id_documento_externo = COALESCE(EXCLUDED.id_documento_externo, cancelaciones.id_documento_externo),
    updated_at = NOW()
RETURNING (xmax = 0) AS inserted`

func (t *txRepository) UpsertCancellation(ctx context.Context, c Cancellation) (bool, error) {
	var inserted bool
	err := t.tx.QueryRow(ctx, upsertCancellationSQL,
		c.ID, c.SaleID, c.IssuedAt, c.CancelledAt, c.Reason, c.ReplacementFolio, c.ExternalDocID,
	).Scan(&inserted)
	return inserted, err
}

const markSaleCancelledSQL = `UPDATE ventas SET
    cancelada = TRUE,
    fecha_cancelacion = COALESCE($2, fecha_cancelacion),
    motivo_cancelacion = COALESCE($3, motivo_cancelacion),
    folio_sustitucion = COALESCE($4, folio_sustitucion),
    id_documento_externo = COALESCE($5, id_documento_externo),
    updated_at = NOW()
WHERE venta_id = $1`

func (t *txRepository) MarkSaleCancelled(ctx context.Context, c Cancellation) (int64, error) {
	if c.SaleID == nil {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx, markSaleCancelledSQL,
		*c.SaleID, c.CancelledAt, c.Reason, c.ReplacementFolio, c.ExternalDocID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const upsertInventorySQL = `INSERT INTO existencias (sku, ubicacion, cantidad, costo_unitario, contado_en, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (sku, ubicacion) DO UPDATE SET
    cantidad = EXCLUDED.cantidad,
    costo_unitario = COALESCE(EXCLUDED.costo_unitario, existencias.costo_unitario),
    contado_en = COALESCE(EXCLUDED.contado_en, existencias.contado_en),
    updated_at = NOW()
RETURNING (xmax = 0) AS inserted`

func (t *txRepository) UpsertInventory(ctx context.Context, item InventoryItem) (bool, error) {
	var inserted bool
	err := t.tx.QueryRow(ctx, upsertInventorySQL,
		item.SKU, item.Location, item.Quantity, item.UnitCost, item.CountedAt,
	).Scan(&inserted)
	return inserted, err
}

// InsertBatch writes one audit row.
func (r *Repository) InsertBatch(ctx context.Context, rec BatchRecord) error {
	errs := rec.Errors
	if errs == nil {
		errs = []ItemError{}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("importer: encode batch errors: %w", err)
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO sync_lotes (
    batch_id, fuente, entidad, total_items, ok_count, dup_count, error_count, errores
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Source, string(rec.Entity), rec.TotalItems, rec.OkCount, rec.DupCount, rec.ErrorCount, payload)
	return err
}

const batchColumns = `batch_id, fuente, entidad, total_items, ok_count, dup_count, error_count, errores, created_at`

// ListBatches returns audit rows newest first with the total match count.
func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]BatchRecord, int, error) {
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_lotes
WHERE ($1::text = '' OR fuente = $1) AND ($2::text = '' OR entidad = $2)`,
		filter.Source, string(filter.Entity)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM sync_lotes
WHERE ($1::text = '' OR fuente = $1) AND ($2::text = '' OR entidad = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`, filter.Source, string(filter.Entity), perPage, shared.Offset(page, perPage))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		rec, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// GetBatch loads one audit row.
func (r *Repository) GetBatch(ctx context.Context, id uuid.UUID) (BatchRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM sync_lotes WHERE batch_id = $1`, id)
	rec, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return BatchRecord{}, ErrBatchNotFound
	}
	return rec, err
}

// PruneBatches deletes audit rows created before the cutoff.
func (r *Repository) PruneBatches(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sync_lotes WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanBatch(row pgx.Row) (BatchRecord, error) {
	var (
		rec     BatchRecord
		entity  string
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.Source, &entity, &rec.TotalItems, &rec.OkCount, &rec.DupCount,
		&rec.ErrorCount, &payload, &rec.CreatedAt); err != nil {
		return BatchRecord{}, err
	}
	rec.Entity = Entity(entity)
	rec.Errors = []ItemError{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Errors); err != nil {
			return BatchRecord{}, fmt.Errorf("importer: decode batch errors: %w", err)
		}
	}
	return rec, nil
}

const advanceCursorSQL = `INSERT INTO sync_cursores (fuente, ultimo_id, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (fuente) DO UPDATE SET
    ultimo_id = GREATEST(sync_cursores.ultimo_id, EXCLUDED.ultimo_id),
    updated_at = NOW()`

// AdvanceCursor moves the source watermark forward, never back.
func (r *Repository) AdvanceCursor(ctx context.Context, source string, candidate int64) error {
	_, err := r.pool.Exec(ctx, advanceCursorSQL, source, candidate)
	return err
}

// ListCursors returns every source watermark.
func (r *Repository) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := r.pool.Query(ctx, `SELECT fuente, ultimo_id, updated_at FROM sync_cursores ORDER BY fuente`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Cursor
	for rows.Next() {
		var c Cursor
		if err := rows.Scan(&c.Source, &c.LastID, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
