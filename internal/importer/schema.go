package importer

import (
	"fmt"
	"strings"
)

// SchemaCapabilities describes which columns the target database carries.
// It is resolved once from configuration and never probed at request time.
type SchemaCapabilities struct {
	Version string
	// LineLocationColumn is the lineas_venta column holding the warehouse.
	LineLocationColumn string
	// OriginAudit enables the origen_* columns on ventas and lineas_venta.
	OriginAudit bool
}

// CurrentSchemaVersion is used when no version is configured.
const CurrentSchemaVersion = "2025.1"

var schemas = map[string]SchemaCapabilities{
	"2024.1": {Version: "2024.1", LineLocationColumn: "almacen", OriginAudit: false},
	"2025.1": {Version: "2025.1", LineLocationColumn: "ubicacion", OriginAudit: true},
}

// SchemaFor resolves a configured schema version.
func SchemaFor(version string) (SchemaCapabilities, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		version = CurrentSchemaVersion
	}
	caps, ok := schemas[version]
	if !ok {
		return SchemaCapabilities{}, fmt.Errorf("importer: unknown schema version %q", version)
	}
	return caps, nil
}

// Sources names the cursor and audit stream of each entity.
type Sources struct {
	Sales         string
	Cancellations string
	Inventory     string
}

func (s Sources) For(entity Entity) string {
	switch entity {
	case EntitySales:
		return s.Sales
	case EntityCancellations:
		return s.Cancellations
	case EntityInventory:
		return s.Inventory
	}
	return ""
}

// Config groups importer settings injected at construction.
type Config struct {
	Sources Sources
	// ForcedBranchID, when set, replaces sucursal_id on every sale write.
	// Single-tenant deployments use it until branches resolve per request.
	ForcedBranchID string
	MaxBatchItems  int
}

// statements holds the SQL text chosen for one schema version.
type statements struct {
	upsertSale string
	insertLine string
}

func buildStatements(caps SchemaCapabilities) statements {
	headerCols := []string{
		"venta_id", "fecha_emision", "sucursal_id", "caja_id", "serie", "folio",
		"subtotal", "impuesto", "total", "cancelada", "fecha_cancelacion",
		"motivo_cancelacion", "folio_sustitucion", "id_documento_externo",
	}
	if caps.OriginAudit {
		headerCols = append(headerCols, "cliente_origen", "origen_raw", "estado_origen", "usuario_origen", "fecha_origen")
	}
	lineCols := []string{
		"venta_id", "renglon", "sku", "cantidad", "precio_unitario", "descuento",
		"importe", "impuesto", caps.LineLocationColumn,
	}
	if caps.OriginAudit {
		lineCols = append(lineCols, "estado_origen", "usuario_origen")
	}

	updates := make([]string, 0, len(headerCols))
	for _, col := range headerCols[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updates = append(updates, "updated_at = NOW()")

	return statements{
		upsertSale: fmt.Sprintf(`INSERT INTO ventas (%s)
VALUES (%s)
ON CONFLICT (venta_id) DO UPDATE SET
    %s
RETURNING (xmax = 0) AS inserted`,
			strings.Join(headerCols, ", "), placeholders(len(headerCols)), strings.Join(updates, ",\n    ")),
		insertLine: fmt.Sprintf(`INSERT INTO lineas_venta (%s)
VALUES (%s)`, strings.Join(lineCols, ", "), placeholders(len(lineCols))),
	}
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
