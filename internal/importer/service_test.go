package importer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

func testConfig() Config {
	return Config{
		Sources: Sources{
			Sales:         "pos-ventas",
			Cancellations: "pos-cancelaciones",
			Inventory:     "pos-inventario",
		},
		MaxBatchItems: 100,
	}
}

func newTestService(repo *memoryRepo, cfg Config) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, cfg, NewMetrics(prometheus.NewRegistry()), logger)
}

func records(t *testing.T, body string) []Record {
	t.Helper()
	recs, err := DecodeRecords([]byte(body))
	require.NoError(t, err)
	return recs
}

func saleJSON(id int, skus ...string) string {
	type line struct {
		SKU      string `json:"sku"`
		Cantidad string `json:"cantidad"`
		Precio   string `json:"precio_unitario"`
	}
	lines := make([]line, 0, len(skus))
	for _, sku := range skus {
		lines = append(lines, line{SKU: sku, Cantidad: "1", Precio: "10"})
	}
	body := map[string]any{
		"venta_id": id,
		"subtotal": "100",
		"impuesto": "16",
		"total":    "999",
		"lineas":   lines,
		"pagos":    []map[string]any{{"metodo": "efectivo", "monto": "116"}},
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestImportSalesIdempotent(t *testing.T) {
	repo := newMemoryRepo("A", "B")
	svc := newTestService(repo, testConfig())
	ctx := context.Background()
	batch := "[" + saleJSON(1, "A", "B") + "]"

	first, err := svc.ImportSalesBatch(ctx, records(t, batch))
	require.NoError(t, err)
	require.Equal(t, 1, first.OkCount)
	require.Equal(t, 0, first.DupCount)
	snapshot := repo.state.sales[1]

	second, err := svc.ImportSalesBatch(ctx, records(t, batch))
	require.NoError(t, err)
	require.Equal(t, 0, second.OkCount)
	require.Equal(t, 1, second.DupCount)
	require.Equal(t, 0, second.ErrorCount)
	require.Equal(t, snapshot, repo.state.sales[1])
	require.NotEqual(t, *first.BatchID, *second.BatchID)
}

func TestImportSalesReplacesChildren(t *testing.T) {
	repo := newMemoryRepo("A", "B", "C")
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	_, err := svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(7, "A", "B", "C")+"]"))
	require.NoError(t, err)
	require.Len(t, repo.state.sales[7].lines, 3)

	_, err = svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(7, "C")+"]"))
	require.NoError(t, err)
	lines := repo.state.sales[7].lines
	require.Len(t, lines, 1)
	require.Equal(t, 1, lines[0].Number)
	require.Equal(t, "C", lines[0].SKU)
	require.Len(t, repo.state.sales[7].payments, 1)
}

func TestImportSalesRecomputesTotal(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())

	_, err := svc.ImportSalesBatch(context.Background(), records(t, "["+saleJSON(3, "A")+"]"))
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(116).Equal(repo.state.sales[3].total))
}

func TestImportSalesIsolatesFailures(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	batch := "[" + saleJSON(1, "A") + "," + saleJSON(2, "ZZZ") + "," + saleJSON(3, "A") + "]"

	res, err := svc.ImportSalesBatch(context.Background(), records(t, batch))
	require.NoError(t, err)
	require.Equal(t, 2, res.OkCount)
	require.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "2", res.Errors[0].NaturalID)
	require.Equal(t, 1, res.Errors[0].Index)
	require.Contains(t, res.Errors[0].Reason, "referencia inexistente")
	require.Contains(t, res.Errors[0].Reason, "lineas_venta_sku_fkey")

	require.Contains(t, repo.state.sales, int64(1))
	require.Contains(t, repo.state.sales, int64(3))
	require.NotContains(t, repo.state.sales, int64(2))
	require.Equal(t, 3, repo.txCount)

	require.Len(t, repo.batches, 1)
	audit := repo.batches[0]
	require.Equal(t, "pos-ventas", audit.Source)
	require.Equal(t, EntitySales, audit.Entity)
	require.Equal(t, 3, audit.TotalItems)
	require.Equal(t, res.Errors, audit.Errors)
	require.Equal(t, *res.BatchID, audit.ID)
}

func TestImportSalesUnknownPaymentMethodIsItemError(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	body := `[{"venta_id": 4, "lineas": [{"sku": "A"}], "pagos": [{"metodo": "bitcoin", "monto": 1}]}]`

	res, err := svc.ImportSalesBatch(context.Background(), records(t, body))
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount)
	require.Contains(t, res.Errors[0].Reason, ErrUnknownPaymentMethod.Error())
	require.Empty(t, repo.state.sales)
}

func TestCursorTracksMaxSeenAndNeverRegresses(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	for _, id := range []int{50, 10, 80} {
		_, err := svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(id, "A")+"]"))
		require.NoError(t, err)
	}
	require.Equal(t, int64(80), repo.cursors["pos-ventas"].LastID)

	_, err := svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(30, "A")+"]"))
	require.NoError(t, err)
	require.Equal(t, int64(80), repo.cursors["pos-ventas"].LastID)

	// the failing item still moves the cursor
	res, err := svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(90, "A")+","+saleJSON(95, "missing")+"]"))
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount)
	require.Equal(t, int64(95), repo.cursors["pos-ventas"].LastID)
}

func TestCancellationCoalesceMerge(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	res, err := svc.ImportCancellationsBatch(ctx, records(t, `[{"id_cancelacion_origen": 1, "motivo": "A"}]`))
	require.NoError(t, err)
	require.Equal(t, 1, res.OkCount)

	res, err = svc.ImportCancellationsBatch(ctx, records(t, `[{"id_cancelacion_origen": 1, "motivo": null, "folio_sustitucion": "F1"}]`))
	require.NoError(t, err)
	require.Equal(t, 1, res.DupCount)

	stored := repo.state.cancellations[1]
	require.Equal(t, "A", *stored.Reason)
	require.Equal(t, "F1", *stored.ReplacementFolio)
	require.Equal(t, int64(1), repo.cursors["pos-cancelaciones"].LastID)
}

func TestOrphanCancellationDoesNotCreateSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, testConfig())

	res, err := svc.ImportCancellationsBatch(context.Background(), records(t, `[{"id_cancelacion_origen": 5, "venta_id": 404, "motivo": "error de captura"}]`))
	require.NoError(t, err)
	require.Equal(t, 1, res.OkCount)
	require.Zero(t, res.ErrorCount)
	require.Empty(t, repo.state.sales)
	require.Equal(t, int64(5), res.MaxID)
}

func TestCancellationFlagsExistingSale(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	_, err := svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(12, "A")+"]"))
	require.NoError(t, err)
	_, err = svc.ImportCancellationsBatch(ctx, records(t, `[{"id_cancelacion_origen": 2, "venta_id": 12, "motivo": "devolucion"}]`))
	require.NoError(t, err)

	header := repo.state.sales[12].header
	require.True(t, header.Cancelled)
	require.Equal(t, "devolucion", *header.CancelReason)
}

func TestSaleImportPicksUpEarlierCancellation(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	_, err := svc.ImportCancellationsBatch(ctx, records(t, `[{"id_cancelacion_origen": 9, "venta_id": 21, "folio_sustitucion": "F-22"}]`))
	require.NoError(t, err)
	_, err = svc.ImportSalesBatch(ctx, records(t, "["+saleJSON(21, "A")+"]"))
	require.NoError(t, err)

	header := repo.state.sales[21].header
	require.True(t, header.Cancelled)
	require.Equal(t, "F-22", *header.ReplacementFolio)
}

func TestEmptyBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, testConfig())

	res, err := svc.ImportSalesBatch(context.Background(), []Record{})
	require.NoError(t, err)
	require.Equal(t, BatchResult{Errors: []ItemError{}}, res)
	require.Nil(t, res.BatchID)
	require.NotNil(t, res.Errors)
	require.Empty(t, repo.batches)
	require.Empty(t, repo.cursors)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{"okCount":0,"dupCount":0,"errorCount":0,"batchId":null,"errors":[]}`, string(raw))
}

func TestMissingSourceIsConfigurationError(t *testing.T) {
	repo := newMemoryRepo("A")
	cfg := testConfig()
	cfg.Sources.Sales = ""
	svc := newTestService(repo, cfg)

	_, err := svc.ImportSalesBatch(context.Background(), records(t, "["+saleJSON(1, "A")+"]"))
	require.ErrorIs(t, err, shared.ErrConfiguration)
	require.Zero(t, repo.txCount)
	require.Empty(t, repo.batches)

	_, err = svc.ImportSalesBatch(context.Background(), []Record{})
	require.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestValidationRejectsWholeBatch(t *testing.T) {
	repo := newMemoryRepo("A")
	svc := newTestService(repo, testConfig())
	body := "[" + saleJSON(1, "A") + `, {"venta_id": 2, "pagos": [{"metodo": "efectivo"}]}]`

	_, err := svc.ImportSalesBatch(context.Background(), records(t, body))
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, []FieldIssue{{Index: 1, Field: "lineas", Message: "requerido"}}, verr.Issues)
	require.Zero(t, repo.txCount)
	require.Empty(t, repo.batches)
}

func TestBatchSizeLimit(t *testing.T) {
	repo := newMemoryRepo("A")
	cfg := testConfig()
	cfg.MaxBatchItems = 1
	svc := newTestService(repo, cfg)

	_, err := svc.ImportSalesBatch(context.Background(), records(t, "["+saleJSON(1, "A")+","+saleJSON(2, "A")+"]"))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, repo.txCount)
}

func TestAuditAndCursorFailuresAreSwallowed(t *testing.T) {
	repo := newMemoryRepo("A")
	repo.failBatchWrite = errBoom
	repo.failCursor = errBoom
	svc := newTestService(repo, testConfig())

	res, err := svc.ImportSalesBatch(context.Background(), records(t, "["+saleJSON(1, "A")+"]"))
	require.NoError(t, err)
	require.Equal(t, 1, res.OkCount)
	require.NotNil(t, res.BatchID)
	require.Contains(t, repo.state.sales, int64(1))
}

func TestForcedBranchOverridesPayload(t *testing.T) {
	repo := newMemoryRepo("A")
	cfg := testConfig()
	cfg.ForcedBranchID = "MATRIZ"
	svc := newTestService(repo, cfg)
	body := `[{"venta_id": 1, "sucursal_id": "S09", "lineas": [{"sku": "A"}], "pagos": [{"metodo": "efectivo"}]}]`

	_, err := svc.ImportSalesBatch(context.Background(), records(t, body))
	require.NoError(t, err)
	require.Equal(t, "MATRIZ", *repo.state.sales[1].header.BranchID)
}

func TestImportInventoryCoalescesCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, testConfig())
	ctx := context.Background()

	res, err := svc.ImportInventoryBatch(ctx, records(t, `[{"sku": "A", "almacen": "PRINCIPAL", "cantidad": 5, "costo_unitario": "12.50"}]`))
	require.NoError(t, err)
	require.Equal(t, 1, res.OkCount)

	res, err = svc.ImportInventoryBatch(ctx, records(t, `[{"sku": "A", "ubicacion": "PRINCIPAL", "cantidad": 3}]`))
	require.NoError(t, err)
	require.Equal(t, 1, res.DupCount)

	item := repo.state.inventory["A@PRINCIPAL"]
	require.True(t, decimal.NewFromInt(3).Equal(item.Quantity))
	require.True(t, decimal.RequireFromString("12.50").Equal(*item.UnitCost))
	require.Empty(t, repo.cursors)
	require.Len(t, repo.batches, 2)
}

func TestPruneBatches(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.batches = []BatchRecord{
		{Source: "old", CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{Source: "new", CreatedAt: now.Add(-time.Hour)},
	}
	svc := newTestService(repo, testConfig())
	svc.now = func() time.Time { return now }

	pruned, err := svc.PruneBatches(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)
	require.Len(t, repo.batches, 1)
	require.Equal(t, "new", repo.batches[0].Source)
}
