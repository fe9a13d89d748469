package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is an imported POS sale header as stored in ventas.
type Sale struct {
	ID               int64           `json:"ventaId"`
	IssuedAt         *time.Time      `json:"fechaEmision"`
	BranchID         *string         `json:"sucursalId"`
	RegisterID       *string         `json:"cajaId"`
	Series           *string         `json:"serie"`
	Folio            *string         `json:"folio"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"impuesto"`
	Total            decimal.Decimal `json:"total"`
	Cancelled        bool            `json:"cancelada"`
	CancelledAt      *time.Time      `json:"fechaCancelacion"`
	CancelReason     *string         `json:"motivoCancelacion"`
	ReplacementFolio *string         `json:"folioSustitucion"`
	ExternalDocID    *string         `json:"idDocumentoExterno"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Line is one ticket line.
type Line struct {
	Number    int             `json:"renglon"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
	Discount  decimal.Decimal `json:"descuento"`
	Amount    decimal.Decimal `json:"importe"`
	Tax       decimal.Decimal `json:"impuesto"`
	Location  *string         `json:"ubicacion"`
}

// Payment is one tender applied to a sale.
type Payment struct {
	Index  int             `json:"idx"`
	Method string          `json:"metodo"`
	Amount decimal.Decimal `json:"monto"`
}

// SaleDetail bundles a header with its children.
type SaleDetail struct {
	Sale
	Lines    []Line    `json:"lineas"`
	Payments []Payment `json:"pagos"`
}

// ListFilter narrows sale listings. BranchID is forced by the caller's scope
// when the principal is tied to a branch.
type ListFilter struct {
	BranchID  string
	From      *time.Time
	To        *time.Time
	Cancelled *bool
	Page      int
	PerPage   int
}
