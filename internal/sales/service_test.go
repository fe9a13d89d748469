package sales

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MRAMOS343/moncar-api/internal/shared"
)

type memoryRepo struct {
	sales      map[int64]SaleDetail
	lastFilter ListFilter
}

func (m *memoryRepo) ListSales(_ context.Context, filter ListFilter) ([]Sale, int, error) {
	m.lastFilter = filter
	var out []Sale
	for _, d := range m.sales {
		if filter.BranchID != "" && (d.BranchID == nil || *d.BranchID != filter.BranchID) {
			continue
		}
		if filter.Cancelled != nil && d.Cancelled != *filter.Cancelled {
			continue
		}
		out = append(out, d.Sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) GetSale(_ context.Context, id int64) (SaleDetail, error) {
	d, ok := m.sales[id]
	if !ok {
		return SaleDetail{}, ErrSaleNotFound
	}
	return d, nil
}

func ptr[T any](v T) *T { return &v }

func seededRepo() *memoryRepo {
	return &memoryRepo{sales: map[int64]SaleDetail{
		1: {Sale: Sale{ID: 1, BranchID: ptr("S01"), Total: decimal.NewFromInt(116)},
			Lines:    []Line{{Number: 1, SKU: "A", Quantity: decimal.NewFromInt(1)}},
			Payments: []Payment{{Index: 1, Method: "efectivo", Amount: decimal.NewFromInt(116)}}},
		2: {Sale: Sale{ID: 2, BranchID: ptr("S02"), Cancelled: true}},
		3: {Sale: Sale{ID: 3}},
	}}
}

func newRouter(svc *Service, principal shared.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), principal)))
		})
	})
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListSalesScopesBranchBoundCallers(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil)

	sales, total, err := svc.ListSales(context.Background(), shared.Principal{Role: "cajero", BranchID: "S01"}, ListFilter{BranchID: "S02"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(1), sales[0].ID)
	require.Equal(t, "S01", repo.lastFilter.BranchID)

	_, total, err = svc.ListSales(context.Background(), shared.Principal{Role: "admin"}, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

func TestGetSaleHidesOtherBranches(t *testing.T) {
	svc := NewService(seededRepo(), nil)

	_, err := svc.GetSale(context.Background(), shared.Principal{Role: "gerente", BranchID: "S01"}, 2)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.GetSale(context.Background(), shared.Principal{Role: "gerente", BranchID: "S01"}, 3)
	require.ErrorIs(t, err, ErrSaleNotFound)

	detail, err := svc.GetSale(context.Background(), shared.Principal{Role: "gerente", BranchID: "S01"}, 1)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
}

func TestListSalesRejectsInvertedRange(t *testing.T) {
	svc := NewService(seededRepo(), nil)
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err := svc.ListSales(context.Background(), shared.Principal{Role: "admin"}, ListFilter{From: &from, To: &to})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSalesEndpoints(t *testing.T) {
	repo := seededRepo()
	h := newRouter(NewService(repo, nil), shared.Principal{Subject: "u", Role: "admin"})

	rec := get(h, "/ventas?cancelada=true&desde=2025-01-01&hasta=2025-01-31&per_page=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, 10, list.Pagination.PerPage)
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *repo.lastFilter.To)

	require.Equal(t, http.StatusBadRequest, get(h, "/ventas?desde=ayer").Code)
	require.Equal(t, http.StatusBadRequest, get(h, "/ventas?cancelada=quizas").Code)

	rec = get(h, "/ventas/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Equal(t, float64(1), detail["ventaId"])
	require.Len(t, detail["lineas"], 1)
	require.Len(t, detail["pagos"], 1)

	require.Equal(t, http.StatusNotFound, get(h, "/ventas/99").Code)
	require.Equal(t, http.StatusBadRequest, get(h, "/ventas/abc").Code)
}

func TestSalesEndpointsRequireReadRole(t *testing.T) {
	h := newRouter(NewService(seededRepo(), nil), shared.Principal{Subject: "pos", Role: "sync"})
	require.Equal(t, http.StatusForbidden, get(h, "/ventas").Code)
}
