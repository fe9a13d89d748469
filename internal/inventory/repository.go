package inventory

import "context"

// Repository reads stock positions.
type Repository interface {
	ListStock(ctx context.Context, filter StockFilter) ([]Stock, int, error)
}
