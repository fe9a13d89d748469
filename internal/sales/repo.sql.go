package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MRAMOS343/moncar-api/internal/importer"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// PostgresRepository reads sales through pgx.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	locationCol string
}

// NewRepository builds the sales read repository. The line location column
// follows the same schema descriptor the importer writes with.
func NewRepository(pool *pgxpool.Pool, caps importer.SchemaCapabilities) *PostgresRepository {
	col := caps.LineLocationColumn
	if col == "" {
		col = "ubicacion"
	}
	return &PostgresRepository{pool: pool, locationCol: col}
}

const saleColumns = `venta_id, fecha_emision, sucursal_id, caja_id, serie, folio,
       subtotal, impuesto, total, cancelada, fecha_cancelacion,
       motivo_cancelacion, folio_sustitucion, id_documento_externo, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.IssuedAt, &s.BranchID, &s.RegisterID, &s.Series, &s.Folio,
		&s.Subtotal, &s.Tax, &s.Total, &s.Cancelled, &s.CancelledAt,
		&s.CancelReason, &s.ReplacementFolio, &s.ExternalDocID, &s.UpdatedAt)
	return s, err
}

// ListSales returns one page of sale headers, newest first.
func (r *PostgresRepository) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("sucursal_id = $%d", argPos))
		args = append(args, filter.BranchID)
		argPos++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("fecha_emision >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("fecha_emision < $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}
	if filter.Cancelled != nil {
		conditions = append(conditions, fmt.Sprintf("cancelada = $%d", argPos))
		args = append(args, *filter.Cancelled)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ventas "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sales: count: %w", err)
	}

	_, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	query := fmt.Sprintf(`SELECT %s FROM ventas %s
ORDER BY fecha_emision DESC NULLS LAST, venta_id DESC
LIMIT $%d OFFSET $%d`, saleColumns, whereClause, argPos, argPos+1)
	args = append(args, perPage, shared.Offset(filter.Page, filter.PerPage))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sales: list: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// GetSale loads a header with its lines and payments.
func (r *PostgresRepository) GetSale(ctx context.Context, id int64) (SaleDetail, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM ventas WHERE venta_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleDetail{}, ErrSaleNotFound
		}
		return SaleDetail{}, fmt.Errorf("sales: get: %w", err)
	}
	detail := SaleDetail{Sale: sale, Lines: []Line{}, Payments: []Payment{}}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT renglon, sku, cantidad, precio_unitario, descuento, importe, impuesto, %s
FROM lineas_venta WHERE venta_id = $1 ORDER BY renglon`, r.locationCol), id)
	if err != nil {
		return SaleDetail{}, fmt.Errorf("sales: lines: %w", err)
	}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Number, &l.SKU, &l.Quantity, &l.UnitPrice, &l.Discount, &l.Amount, &l.Tax, &l.Location); err != nil {
			rows.Close()
			return SaleDetail{}, err
		}
		detail.Lines = append(detail.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SaleDetail{}, err
	}

	rows, err = r.pool.Query(ctx, `SELECT idx, metodo, monto FROM pagos_venta WHERE venta_id = $1 ORDER BY idx`, id)
	if err != nil {
		return SaleDetail{}, fmt.Errorf("sales: payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.Index, &p.Method, &p.Amount); err != nil {
			return SaleDetail{}, err
		}
		detail.Payments = append(detail.Payments, p)
	}
	return detail, rows.Err()
}
