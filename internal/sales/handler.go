package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MRAMOS343/moncar-api/internal/auth"
	"github.com/MRAMOS343/moncar-api/internal/platform/httpx"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// Handler serves the sales read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleManager, auth.RoleCashier))
		r.Get("/ventas", h.listSales)
		r.Get("/ventas/{id}", h.showSale)
	})
}

type listResponse struct {
	Data       []Sale            `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	sales, total, err := h.service.ListSales(r.Context(), principal, filter)
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	if sales == nil {
		sales = []Sale{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Data:       sales,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) showSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id de venta invalido")
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	detail, err := h.service.GetSale(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{BranchID: q.Get("sucursal"), Page: page, PerPage: perPage}

	if raw := q.Get("desde"); raw != "" {
		t, _, err := parseDay(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: desde invalido", shared.ErrValidation)
		}
		filter.From = &t
	}
	if raw := q.Get("hasta"); raw != "" {
		t, dateOnly, err := parseDay(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: hasta invalido", shared.ErrValidation)
		}
		// a bare date includes the whole day
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		filter.To = &t
	}
	if raw := q.Get("cancelada"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: cancelada invalido", shared.ErrValidation)
		}
		filter.Cancelled = &v
	}
	return filter, nil
}

func parseDay(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
