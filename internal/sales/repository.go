package sales

import (
	"context"
	"fmt"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// ErrSaleNotFound is returned when a sale id does not exist.
var ErrSaleNotFound = fmt.Errorf("sales: venta %w", shared.ErrNotFound)

// Repository reads imported sales.
type Repository interface {
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
	GetSale(ctx context.Context, id int64) (SaleDetail, error)
}
