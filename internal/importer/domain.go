package importer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity names the kind of record a batch carries.
type Entity string

const (
	EntitySales         Entity = "ventas"
	EntityCancellations Entity = "cancelaciones"
	EntityInventory     Entity = "inventario"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "efectivo"
	PaymentCreditCard PaymentMethod = "tarjeta_credito"
	PaymentDebitCard  PaymentMethod = "tarjeta_debito"
	PaymentTransfer   PaymentMethod = "transferencia"
	PaymentVoucher    PaymentMethod = "vales"
	PaymentCheck      PaymentMethod = "cheque"
	PaymentOther      PaymentMethod = "otro"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentCash:       {},
	PaymentCreditCard: {},
	PaymentDebitCard:  {},
	PaymentTransfer:   {},
	PaymentVoucher:    {},
	PaymentCheck:      {},
	PaymentOther:      {},
}

// Valid reports whether the method is part of the enumeration.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethods[m]
	return ok
}

// Outcome reports how an upsert landed.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
)

// Origin keeps the POS-side audit fields of a sale as received.
type Origin struct {
	ClientName *string
	Raw        json.RawMessage
	StateCode  *string
	User       *string
	At         *time.Time
}

// Sale is the canonical sale header plus its owned collections.
type Sale struct {
	ID               int64 `validate:"required,gt=0" field:"venta_id"`
	IssuedAt         *time.Time
	BranchID         *string
	RegisterID       *string
	Series           *string
	Folio            *string
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Cancelled        bool
	CancelledAt      *time.Time
	CancelReason     *string
	ReplacementFolio *string
	ExternalDocID    *string
	Origin           Origin
	Lines            []SaleLine `validate:"required,min=1,dive" field:"lineas"`
	Payments         []Payment  `validate:"required,min=1,dive" field:"pagos"`
}

// Total is always derived; any caller-supplied total is ignored.
func (s Sale) Total() decimal.Decimal {
	return s.Subtotal.Add(s.Tax)
}

// SaleLine is one ticket row. Number is positional and 1-based.
type SaleLine struct {
	Number      int    `validate:"gt=0" field:"renglon"`
	SKU         string `validate:"required" field:"sku"`
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Amount      decimal.Decimal
	Tax         decimal.Decimal
	Location    *string
	OriginState *string
	OriginUser  *string
}

// Payment is one tender applied to a sale.
type Payment struct {
	Index  int           `validate:"gte=0" field:"idx"`
	Method PaymentMethod `validate:"required" field:"metodo"`
	Amount decimal.Decimal
}

// Cancellation is accumulated across messages; nil fields mean unknown.
type Cancellation struct {
	ID               int64 `validate:"required,gt=0" field:"id_cancelacion_origen"`
	SaleID           *int64
	IssuedAt         *time.Time
	CancelledAt      *time.Time
	Reason           *string
	ReplacementFolio *string
	ExternalDocID    *string
}

// InventoryItem is one counted stock position.
type InventoryItem struct {
	SKU       string `validate:"required" field:"sku"`
	Location  string `validate:"required" field:"ubicacion"`
	Quantity  decimal.Decimal
	UnitCost  *decimal.Decimal
	CountedAt *time.Time
}

// ItemError attributes a rolled-back item to its natural id.
type ItemError struct {
	NaturalID string `json:"naturalId"`
	Index     int    `json:"index"`
	Reason    string `json:"reason"`
}

// BatchResult summarises one import call.
type BatchResult struct {
	OkCount    int         `json:"okCount"`
	DupCount   int         `json:"dupCount"`
	ErrorCount int         `json:"errorCount"`
	BatchID    *uuid.UUID  `json:"batchId"`
	Errors     []ItemError `json:"errors"`
	// MaxID is the highest natural id seen in the batch, zero for inventory.
	MaxID int64 `json:"-"`
}

// Total returns the number of items the batch carried.
func (r BatchResult) Total() int {
	return r.OkCount + r.DupCount + r.ErrorCount
}

// BatchRecord is one persisted audit row.
type BatchRecord struct {
	ID         uuid.UUID   `json:"batchId"`
	Source     string      `json:"fuente"`
	Entity     Entity      `json:"entidad"`
	TotalItems int         `json:"totalItems"`
	OkCount    int         `json:"okCount"`
	DupCount   int         `json:"dupCount"`
	ErrorCount int         `json:"errorCount"`
	Errors     []ItemError `json:"errors"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// BatchFilter narrows audit listings.
type BatchFilter struct {
	Source  string
	Entity  Entity
	Page    int
	PerPage int
}

// Cursor is the watermark of one source.
type Cursor struct {
	Source    string    `json:"fuente"`
	LastID    int64     `json:"ultimoId"`
	UpdatedAt time.Time `json:"updatedAt"`
}
