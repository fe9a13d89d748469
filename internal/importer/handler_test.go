package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

type fakeEnqueuer struct {
	records []Record
}

func (f *fakeEnqueuer) EnqueueSalesImport(_ context.Context, records []Record) (string, error) {
	f.records = records
	return "task-1", nil
}

func newTestRouter(t *testing.T, repo *memoryRepo, cfg Config, role string, enq Enqueuer) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, newTestService(repo, cfg), enq)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithPrincipal(req.Context(), shared.Principal{Subject: "u1", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleSalesBatch(t *testing.T) {
	repo := newMemoryRepo("A")
	h := newTestRouter(t, repo, testConfig(), "sync", nil)

	rec := doJSON(t, h, http.MethodPost, "/sync/ventas/lote", `{"ventas": [`+saleJSON(1, "A")+`,`+saleJSON(2, "nope")+`]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		OkCount    int         `json:"okCount"`
		DupCount   int         `json:"dupCount"`
		ErrorCount int         `json:"errorCount"`
		BatchID    *string     `json:"batchId"`
		Errors     []ItemError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.OkCount)
	require.Equal(t, 1, body.ErrorCount)
	require.NotNil(t, body.BatchID)
	require.Equal(t, "2", body.Errors[0].NaturalID)
}

func TestHandleCancellationsBatchReportsMaxID(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestRouter(t, repo, testConfig(), "admin", nil)

	rec := doJSON(t, h, http.MethodPost, "/sync/cancelaciones/lote", `[{"id_cancelacion_origen": 3}, {"id_cancelacion_origen": 11}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, float64(11), body["maxCancellationId"])
	require.Equal(t, float64(2), body["okCount"])

	rec = doJSON(t, h, http.MethodPost, "/sync/cancelaciones/lote", `[]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"okCount":0,"dupCount":0,"errorCount":0,"batchId":null,"errors":[],"maxCancellationId":null}`, rec.Body.String())
}

func TestHandleBatchErrors(t *testing.T) {
	repo := newMemoryRepo("A")

	forbidden := newTestRouter(t, repo, testConfig(), "cajero", nil)
	require.Equal(t, http.StatusForbidden, doJSON(t, forbidden, http.MethodPost, "/sync/ventas/lote", `[]`).Code)

	cfg := testConfig()
	cfg.Sources.Cancellations = ""
	h := newTestRouter(t, repo, cfg, "sync", nil)
	require.Equal(t, http.StatusServiceUnavailable, doJSON(t, h, http.MethodPost, "/sync/cancelaciones/lote", `[{"id": 1}]`).Code)

	rec := doJSON(t, h, http.MethodPost, "/sync/ventas/lote", `[{"venta_id": 1}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem struct {
		Errors []FieldIssue `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, []FieldIssue{{Index: 0, Field: "lineas", Message: "requerido"}}, problem.Errors)

	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/sync/ventas/lote", `{"nope": true}`).Code)
	require.Zero(t, repo.txCount)
}

func TestHandleSalesBatchAsync(t *testing.T) {
	repo := newMemoryRepo("A")
	enq := &fakeEnqueuer{}
	h := newTestRouter(t, repo, testConfig(), "sync", enq)

	rec := doJSON(t, h, http.MethodPost, "/sync/ventas/lote/async", `[`+saleJSON(1, "A")+`]`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"taskId":"task-1"}`, rec.Body.String())
	require.Len(t, enq.records, 1)
	require.Zero(t, repo.txCount)

	rec = doJSON(t, h, http.MethodPost, "/sync/ventas/lote/async", `[{"venta_id": 1}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	noQueue := newTestRouter(t, repo, testConfig(), "sync", nil)
	require.Equal(t, http.StatusServiceUnavailable, doJSON(t, noQueue, http.MethodPost, "/sync/ventas/lote/async", `[]`).Code)
}

func TestHandleAuditViews(t *testing.T) {
	repo := newMemoryRepo("A")
	h := newTestRouter(t, repo, testConfig(), "admin", nil)
	rec := doJSON(t, h, http.MethodPost, "/sync/ventas/lote", `[`+saleJSON(5, "A")+`]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sync/lotes?entidad=ventas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data       []BatchRecord     `json:"data"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, 1, list.Pagination.Total)

	rec = doJSON(t, h, http.MethodGet, "/sync/lotes/"+list.Data[0].ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/sync/lotes/not-a-uuid", "").Code)
	require.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/sync/lotes/00000000-0000-0000-0000-000000000001", "").Code)

	rec = doJSON(t, h, http.MethodGet, "/sync/cursores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ultimoId":5`)
}

func TestHandleInventoryWorkbook(t *testing.T) {
	repo := newMemoryRepo()
	h := newTestRouter(t, repo, testConfig(), "sync", nil)

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"SKU", "Almacen", "Existencia", "Costo Unitario"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"A-1", "PRINCIPAL", 12, "1,250.50"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"", "", "", ""}))
	require.NoError(t, wb.SetSheetRow(sheet, "A4", &[]any{"B-2", "PRINCIPAL", 0}))
	xlsx, err := wb.WriteToBuffer()
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("archivo", "conteo.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/sync/inventario/excel", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, repo.state.inventory, 2)
	item := repo.state.inventory["A-1@PRINCIPAL"]
	require.Equal(t, "1250.5", item.UnitCost.String())
	require.Equal(t, "12", item.Quantity.String())
}
