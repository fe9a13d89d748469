package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Record is one caller-supplied item before normalization.
type Record map[string]any

// aliasTable maps a canonical field to the source keys accepted for it, in
// priority order. New POS releases only ever add entries here.
type aliasTable map[string][]string

var saleAliases = aliasTable{
	"venta_id":             {"venta_id", "id_venta", "idventa", "id"},
	"fecha_emision":        {"fecha_emision", "fecha", "fecha_venta"},
	"sucursal_id":          {"sucursal_id", "id_sucursal", "sucursal", "branch_id"},
	"caja_id":              {"caja_id", "id_caja", "caja", "terminal"},
	"serie":                {"serie", "serie_folio"},
	"folio":                {"folio", "folio_venta", "ticket", "numero_ticket"},
	"subtotal":             {"subtotal", "sub_total"},
	"impuesto":             {"impuesto", "iva", "tax", "impuestos"},
	"cancelada":            {"cancelada", "cancelado"},
	"fecha_cancelacion":    {"fecha_cancelacion", "cancelada_en"},
	"motivo_cancelacion":   {"motivo_cancelacion", "motivo"},
	"folio_sustitucion":    {"folio_sustitucion", "folio_sustituto"},
	"id_documento_externo": {"id_documento_externo", "uuid_cfdi", "uuid"},
	"cliente_origen":       {"cliente_origen", "cliente", "nombre_cliente"},
	"origen_raw":           {"origen_raw", "raw", "payload_origen"},
	"estado_origen":        {"estado_origen", "status_origen", "estatus"},
	"usuario_origen":       {"usuario_origen", "usuario", "cajero"},
	"fecha_origen":         {"fecha_origen", "origen_fecha"},
	"lineas":               {"lineas", "renglones", "items", "detalle"},
	"pagos":                {"pagos", "formas_pago", "payments"},
}

var lineAliases = aliasTable{
	"sku":             {"sku", "codigo", "producto_sku", "clave"},
	"cantidad":        {"cantidad", "qty", "cant"},
	"precio_unitario": {"precio_unitario", "precio", "price"},
	"descuento":       {"descuento", "desc", "discount"},
	"importe":         {"importe", "importe_linea", "total_linea"},
	"impuesto":        {"impuesto", "iva", "impuesto_linea"},
	"ubicacion":       {"ubicacion", "almacen", "almacen_id", "bodega"},
	"estado_origen":   {"estado_origen", "status_origen"},
	"usuario_origen":  {"usuario_origen", "usuario"},
}

var paymentAliases = aliasTable{
	"idx":    {"idx", "indice", "index"},
	"metodo": {"metodo", "forma_pago", "metodo_pago", "method"},
	"monto":  {"monto", "importe", "amount"},
}

var cancellationAliases = aliasTable{
	"id_cancelacion_origen": {"id_cancelacion_origen", "id_cancelacion", "cancelacion_id", "id"},
	"venta_id":              {"venta_id", "id_venta"},
	"fecha_emision":         {"fecha_emision", "fecha"},
	"fecha_cancelacion":     {"fecha_cancelacion", "cancelada_en"},
	"motivo":                {"motivo", "motivo_cancelacion", "razon"},
	"folio_sustitucion":     {"folio_sustitucion", "folio_sustituto"},
	"id_documento_externo":  {"id_documento_externo", "uuid_cfdi", "uuid"},
}

var inventoryAliases = aliasTable{
	"sku":            {"sku", "codigo", "clave"},
	"ubicacion":      {"ubicacion", "almacen", "almacen_id", "bodega"},
	"cantidad":       {"cantidad", "existencia", "stock", "qty"},
	"costo_unitario": {"costo_unitario", "costo", "cost"},
	"contado_en":     {"contado_en", "fecha_conteo", "fecha"},
}

// lookup returns the first non-null value among the field's aliases.
func (t aliasTable) lookup(rec Record, field string) (any, bool) {
	for _, key := range t[field] {
		if v, ok := rec[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Mapper normalizes records into canonical entities.
type Mapper struct {
	validate *validator.Validate
}

// NewMapper builds a Mapper whose validation issues use canonical field names.
func NewMapper() *Mapper {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}
		return fld.Name
	})
	return &Mapper{validate: v}
}

// MapSales normalizes a whole batch. Any malformed item rejects the batch.
func (m *Mapper) MapSales(records []Record) ([]Sale, error) {
	verr := &ValidationError{}
	out := make([]Sale, 0, len(records))
	for i, rec := range records {
		sale := m.mapSale(i, rec, verr)
		m.check(i, sale, verr)
		out = append(out, sale)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// MapCancellations normalizes a cancellation batch.
func (m *Mapper) MapCancellations(records []Record) ([]Cancellation, error) {
	verr := &ValidationError{}
	out := make([]Cancellation, 0, len(records))
	for i, rec := range records {
		c := m.mapCancellation(i, rec, verr)
		m.check(i, c, verr)
		out = append(out, c)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// MapInventory normalizes an inventory batch.
func (m *Mapper) MapInventory(records []Record) ([]InventoryItem, error) {
	verr := &ValidationError{}
	out := make([]InventoryItem, 0, len(records))
	for i, rec := range records {
		item := m.mapInventory(i, rec, verr)
		m.check(i, item, verr)
		out = append(out, item)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mapper) check(index int, v any, verr *ValidationError) {
	err := m.validate.Struct(v)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add(index, "", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ns := fe.Namespace()
		if dot := strings.IndexByte(ns, '.'); dot >= 0 {
			ns = ns[dot+1:]
		}
		verr.add(index, ns, describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "requerido"
	case "min":
		return fmt.Sprintf("debe contener al menos %s elemento(s)", fe.Param())
	case "gt":
		return fmt.Sprintf("debe ser mayor a %s", fe.Param())
	case "gte":
		return fmt.Sprintf("debe ser mayor o igual a %s", fe.Param())
	}
	return "invalido (" + fe.Tag() + ")"
}

// fieldReader resolves and coerces the fields of one record, accumulating
// coercion issues under a path prefix such as "lineas[2].".
type fieldReader struct {
	rec     Record
	aliases aliasTable
	index   int
	prefix  string
	verr    *ValidationError
}

func (r fieldReader) fail(field string, err error) {
	r.verr.add(r.index, r.prefix+field, err.Error())
}

func (r fieldReader) int64(field string) int64 {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return 0
	}
	n, err := asInt64(v)
	if err != nil {
		r.fail(field, err)
	}
	return n
}

func (r fieldReader) optInt64(field string) *int64 {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return nil
	}
	n, err := asInt64(v)
	if err != nil {
		r.fail(field, err)
		return nil
	}
	return &n
}

func (r fieldReader) str(field string) *string {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return nil
	}
	s, err := asString(v)
	if err != nil {
		r.fail(field, err)
	}
	return s
}

func (r fieldReader) decimal(field string) (decimal.Decimal, bool) {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return decimal.Zero, false
	}
	d, err := asDecimal(v)
	if err != nil {
		r.fail(field, err)
		return decimal.Zero, false
	}
	return d, true
}

func (r fieldReader) time(field string) *time.Time {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return nil
	}
	t, err := asTime(v)
	if err != nil {
		r.fail(field, err)
	}
	return t
}

func (r fieldReader) bool(field string) bool {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return false
	}
	b, err := asBool(v)
	if err != nil {
		r.fail(field, err)
	}
	return b
}

func (r fieldReader) records(field string) []Record {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return nil
	}
	recs, err := asRecords(v)
	if err != nil {
		r.fail(field, err)
	}
	return recs
}

func (r fieldReader) raw(field string) json.RawMessage {
	v, ok := r.aliases.lookup(r.rec, field)
	if !ok {
		return nil
	}
	raw, err := asRaw(v)
	if err != nil {
		r.fail(field, err)
	}
	return raw
}

func (m *Mapper) mapSale(index int, rec Record, verr *ValidationError) Sale {
	r := fieldReader{rec: rec, aliases: saleAliases, index: index, verr: verr}
	sale := Sale{
		ID:               r.int64("venta_id"),
		IssuedAt:         r.time("fecha_emision"),
		BranchID:         r.str("sucursal_id"),
		RegisterID:       r.str("caja_id"),
		Series:           r.str("serie"),
		Folio:            r.str("folio"),
		Cancelled:        r.bool("cancelada"),
		CancelledAt:      r.time("fecha_cancelacion"),
		CancelReason:     r.str("motivo_cancelacion"),
		ReplacementFolio: r.str("folio_sustitucion"),
		ExternalDocID:    r.str("id_documento_externo"),
		Origin: Origin{
			ClientName: r.str("cliente_origen"),
			Raw:        r.raw("origen_raw"),
			StateCode:  r.str("estado_origen"),
			User:       r.str("usuario_origen"),
			At:         r.time("fecha_origen"),
		},
	}
	sale.Subtotal, _ = r.decimal("subtotal")
	sale.Tax, _ = r.decimal("impuesto")

	for i, lineRec := range r.records("lineas") {
		lr := fieldReader{rec: lineRec, aliases: lineAliases, index: index, prefix: fmt.Sprintf("lineas[%d].", i), verr: verr}
		line := SaleLine{
			Number:      i + 1,
			Location:    lr.str("ubicacion"),
			OriginState: lr.str("estado_origen"),
			OriginUser:  lr.str("usuario_origen"),
		}
		if sku := lr.str("sku"); sku != nil {
			line.SKU = *sku
		}
		line.Quantity, _ = lr.decimal("cantidad")
		line.UnitPrice, _ = lr.decimal("precio_unitario")
		line.Discount, _ = lr.decimal("descuento")
		line.Tax, _ = lr.decimal("impuesto")
		if amount, ok := lr.decimal("importe"); ok {
			line.Amount = amount
		} else {
			line.Amount = line.Quantity.Mul(line.UnitPrice).Sub(line.Discount)
		}
		sale.Lines = append(sale.Lines, line)
	}

	for i, payRec := range r.records("pagos") {
		pr := fieldReader{rec: payRec, aliases: paymentAliases, index: index, prefix: fmt.Sprintf("pagos[%d].", i), verr: verr}
		pay := Payment{Index: i + 1}
		if idx := pr.optInt64("idx"); idx != nil {
			pay.Index = int(*idx)
		}
		if method := pr.str("metodo"); method != nil {
			pay.Method = normalizeMethod(*method)
		}
		pay.Amount, _ = pr.decimal("monto")
		sale.Payments = append(sale.Payments, pay)
	}
	return sale
}

func (m *Mapper) mapCancellation(index int, rec Record, verr *ValidationError) Cancellation {
	r := fieldReader{rec: rec, aliases: cancellationAliases, index: index, verr: verr}
	return Cancellation{
		ID:               r.int64("id_cancelacion_origen"),
		SaleID:           r.optInt64("venta_id"),
		IssuedAt:         r.time("fecha_emision"),
		CancelledAt:      r.time("fecha_cancelacion"),
		Reason:           r.str("motivo"),
		ReplacementFolio: r.str("folio_sustitucion"),
		ExternalDocID:    r.str("id_documento_externo"),
	}
}

func (m *Mapper) mapInventory(index int, rec Record, verr *ValidationError) InventoryItem {
	r := fieldReader{rec: rec, aliases: inventoryAliases, index: index, verr: verr}
	item := InventoryItem{CountedAt: r.time("contado_en")}
	if sku := r.str("sku"); sku != nil {
		item.SKU = *sku
	}
	if loc := r.str("ubicacion"); loc != nil {
		item.Location = *loc
	}
	if _, present := inventoryAliases.lookup(rec, "cantidad"); !present {
		r.fail("cantidad", errors.New("requerido"))
	}
	item.Quantity, _ = r.decimal("cantidad")
	if cost, ok := r.decimal("costo_unitario"); ok {
		item.UnitCost = &cost
	}
	return item
}

func normalizeMethod(s string) PaymentMethod {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return PaymentMethod(s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil || !fitsInt64(f) {
			return 0, fmt.Errorf("entero invalido %q", t.String())
		}
		return int64(f), nil
	case float64:
		if !fitsInt64(t) {
			return 0, fmt.Errorf("entero invalido %v", t)
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("entero invalido %q", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("entero invalido de tipo %T", v)
}

// fitsInt64 reports whether f is integral and inside the int64 range.
// 2^63 itself is representable as float64 but not as int64.
func fitsInt64(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

func asString(v any) (*string, error) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil, fmt.Errorf("texto invalido de tipo %T", v)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func asDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("numero invalido %q", t.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("numero invalido %q", t)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("numero invalido de tipo %T", v)
}

func asTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return &t, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return &parsed, nil
			}
		}
		return nil, fmt.Errorf("fecha invalida %q", t)
	}
	return nil, fmt.Errorf("fecha invalida de tipo %T", v)
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case json.Number:
		return t.String() != "0", nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "t", "si", "s", "yes":
			return true, nil
		case "", "0", "false", "f", "no", "n":
			return false, nil
		}
		return false, fmt.Errorf("booleano invalido %q", t)
	}
	return false, fmt.Errorf("booleano invalido de tipo %T", v)
}

func asRecords(v any) ([]Record, error) {
	switch t := v.(type) {
	case []Record:
		return t, nil
	case []map[string]any:
		out := make([]Record, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, m)
			case Record:
				out = append(out, m)
			default:
				return nil, fmt.Errorf("elemento %d no es un objeto", i)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("se esperaba un arreglo, se recibio %T", v)
}

func asRaw(v any) (json.RawMessage, error) {
	if s, ok := v.(string); ok {
		trimmed := bytes.TrimSpace([]byte(s))
		if len(trimmed) == 0 {
			return nil, nil
		}
		if json.Valid(trimmed) {
			return json.RawMessage(trimmed), nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("origen_raw invalido: %w", err)
	}
	return raw, nil
}

// DecodeRecords reads a JSON batch body: either a bare array or an object
// wrapping the array under one of the given keys.
func DecodeRecords(data []byte, keys ...string) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, &ValidationError{Issues: []FieldIssue{{Index: -1, Message: "json invalido: " + err.Error()}}}
	}
	switch t := body.(type) {
	case []any:
		return recordsOrIssue(t)
	case map[string]any:
		for _, key := range keys {
			if arr, ok := t[key].([]any); ok {
				return recordsOrIssue(arr)
			}
		}
		if arr, ok := t["items"].([]any); ok {
			return recordsOrIssue(arr)
		}
	}
	return nil, &ValidationError{Issues: []FieldIssue{{Index: -1, Message: "se esperaba un arreglo de registros"}}}
}

func recordsOrIssue(arr []any) ([]Record, error) {
	recs, err := asRecords(arr)
	if err != nil {
		return nil, &ValidationError{Issues: []FieldIssue{{Index: -1, Message: err.Error()}}}
	}
	return recs, nil
}
