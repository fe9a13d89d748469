package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is one counted position of a SKU at a location.
type Stock struct {
	SKU         string           `json:"sku"`
	Location    string           `json:"ubicacion"`
	Description *string          `json:"descripcion"`
	Quantity    decimal.Decimal  `json:"cantidad"`
	UnitCost    *decimal.Decimal `json:"costoUnitario"`
	CountedAt   *time.Time       `json:"contadoEn"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// StockFilter narrows stock listings.
type StockFilter struct {
	SKU      string
	Location string
	// OnlyPositive hides zero and negative positions.
	OnlyPositive bool
	Page         int
	PerPage      int
}
