package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry referenced by sale lines and stock rows.
type Product struct {
	SKU         string          `json:"sku"`
	Description string          `json:"descripcion"`
	Unit        *string         `json:"unidad"`
	Price       decimal.Decimal `json:"precio"`
	Active      bool            `json:"activo"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search  string
	Active  *bool
	Page    int
	PerPage int
}

// Page is one cached page of products.
type Page struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}
