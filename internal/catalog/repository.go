package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// ErrProductNotFound is returned for unknown SKUs.
var ErrProductNotFound = fmt.Errorf("catalog: producto %w", shared.ErrNotFound)

// Repository reads products.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, sku string) (Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the pgx backed product repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `sku, descripcion, unidad, precio, activo, updated_at`

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (sku ILIKE $` + n + ` OR descripcion ILIKE $` + n + `)`
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += ` AND activo = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM productos`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	var b strings.Builder
	b.WriteString(`SELECT ` + productColumns + ` FROM productos` + where + ` ORDER BY sku`)
	args = append(args, perPage, shared.Offset(page, perPage))
	fmt.Fprintf(&b, ` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.SKU, &p.Description, &p.Unit, &p.Price, &p.Active, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM productos WHERE sku = $1`, sku).
		Scan(&p.SKU, &p.Description, &p.Unit, &p.Price, &p.Active, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}
