package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// PostgresRepository reads existencias joined with the product catalog.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PostgresRepository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListStock returns one page of stock positions ordered by sku and location.
func (r *PostgresRepository) ListStock(ctx context.Context, filter StockFilter) ([]Stock, int, error) {
	var conditions []string
	var args []any

	if filter.SKU != "" {
		args = append(args, filter.SKU)
		conditions = append(conditions, fmt.Sprintf("e.sku = $%d", len(args)))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		conditions = append(conditions, fmt.Sprintf("e.ubicacion = $%d", len(args)))
	}
	if filter.OnlyPositive {
		conditions = append(conditions, "e.cantidad > 0")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM existencias e "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("inventory: count stock: %w", err)
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := fmt.Sprintf(`SELECT e.sku, e.ubicacion, p.descripcion, e.cantidad, e.costo_unitario, e.contado_en, e.updated_at
FROM existencias e
LEFT JOIN productos p ON p.sku = e.sku
%s
ORDER BY e.sku, e.ubicacion
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("inventory: list stock: %w", err)
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.SKU, &s.Location, &s.Description, &s.Quantity, &s.UnitCost, &s.CountedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}
