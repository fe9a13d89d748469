package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MRAMOS343/moncar-api/internal/auth"
	"github.com/MRAMOS343/moncar-api/internal/platform/httpx"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// Handler exposes the product catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes. Any authenticated caller may read.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/productos", h.list)
	r.Get("/productos/{sku}", h.show)
	r.With(auth.RequireRole(auth.RoleAdmin)).Delete("/productos/cache", h.invalidate)
}

type listResponse struct {
	Data       []Product         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := ListFilter{Search: q.Get("q"), Page: page, PerPage: perPage}
	if raw := q.Get("activo"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "activo invalido")
			return
		}
		filter.Active = &v
	}
	res, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Data:       res.Items,
		Pagination: shared.NewPagination(page, perPage, res.Total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "sku"))
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.fail(w, "invalidate catalog cache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
