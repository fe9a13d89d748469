package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MRAMOS343/moncar-api/internal/platform/httpx"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// Handler serves stock read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventario", h.listStock)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := StockFilter{
		SKU:          q.Get("sku"),
		Location:     q.Get("almacen"),
		OnlyPositive: q.Get("con_existencia") == "true",
		Page:         page,
		PerPage:      perPage,
	}
	stock, total, err := h.service.ListStock(r.Context(), filter)
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       stock,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}
