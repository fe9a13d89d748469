package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MRAMOS343/moncar-api/internal/auth"
	"github.com/MRAMOS343/moncar-api/internal/platform/httpx"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

const (
	maxBatchBody    = 32 << 20
	maxWorkbookBody = 16 << 20
)

// Enqueuer hands a sales batch to the background worker.
type Enqueuer interface {
	EnqueueSalesImport(ctx context.Context, records []Record) (string, error)
}

// Handler wires HTTP endpoints for the sync module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer Enqueuer
}

// NewHandler constructs the sync handler. enqueuer may be nil, which
// disables the async endpoint.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, enqueuer: enqueuer}
}

// MountRoutes registers sync routes. Callers must already be authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sync", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleSync))
		r.Post("/ventas/lote", h.handleSalesBatch)
		r.Post("/ventas/lote/async", h.handleSalesBatchAsync)
		r.Post("/cancelaciones/lote", h.handleCancellationsBatch)
		r.Post("/inventario/lote", h.handleInventoryBatch)
		r.Post("/inventario/excel", h.handleInventoryWorkbook)
		r.Get("/lotes", h.handleListBatches)
		r.Get("/lotes/{id}", h.handleGetBatch)
		r.Get("/cursores", h.handleListCursors)
	})
}

type cancellationsResponse struct {
	BatchResult
	MaxCancellationID *int64 `json:"maxCancellationId"`
}

type listResponse[T any] struct {
	Data       []T               `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) readRecords(w http.ResponseWriter, r *http.Request, keys ...string) ([]Record, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "el lote excede el tamano permitido")
			return nil, false
		}
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no se pudo leer el cuerpo")
		return nil, false
	}
	records, err := DecodeRecords(body, keys...)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	return records, true
}

func (h *Handler) handleSalesBatch(w http.ResponseWriter, r *http.Request) {
	records, ok := h.readRecords(w, r, "ventas")
	if !ok {
		return
	}
	res, err := h.service.ImportSalesBatch(r.Context(), records)
	if err != nil {
		h.fail(w, "import sales batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancellationsBatch(w http.ResponseWriter, r *http.Request) {
	records, ok := h.readRecords(w, r, "cancelaciones")
	if !ok {
		return
	}
	res, err := h.service.ImportCancellationsBatch(r.Context(), records)
	if err != nil {
		h.fail(w, "import cancellations batch", err)
		return
	}
	resp := cancellationsResponse{BatchResult: res}
	if res.MaxID > 0 {
		maxID := res.MaxID
		resp.MaxCancellationID = &maxID
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleInventoryBatch(w http.ResponseWriter, r *http.Request) {
	records, ok := h.readRecords(w, r, "inventario", "existencias")
	if !ok {
		return
	}
	res, err := h.service.ImportInventoryBatch(r.Context(), records)
	if err != nil {
		h.fail(w, "import inventory batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleInventoryWorkbook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBody)
	if err := r.ParseMultipartForm(maxWorkbookBody); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "se esperaba un formulario multipart")
		return
	}
	file, _, err := r.FormFile("archivo")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "falta el campo archivo")
		return
	}
	defer file.Close()

	records, err := ReadWorkbook(file)
	if err != nil {
		h.fail(w, "read inventory workbook", err)
		return
	}
	res, err := h.service.ImportInventoryBatch(r.Context(), records)
	if err != nil {
		h.fail(w, "import inventory workbook", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleSalesBatchAsync(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "la cola de trabajos no esta configurada")
		return
	}
	records, ok := h.readRecords(w, r, "ventas")
	if !ok {
		return
	}
	if _, err := h.service.precheck(EntitySales, records); err != nil {
		h.fail(w, "enqueue sales batch", err)
		return
	}
	if len(records) == 0 {
		httpx.JSON(w, http.StatusOK, emptyResult())
		return
	}
	if _, err := h.service.mapper.MapSales(records); err != nil {
		httpx.RespondError(w, err)
		return
	}
	taskID, err := h.enqueuer.EnqueueSalesImport(r.Context(), records)
	if err != nil {
		h.fail(w, "enqueue sales batch", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filter := BatchFilter{
		Source:  q.Get("fuente"),
		Entity:  Entity(q.Get("entidad")),
		Page:    page,
		PerPage: perPage,
	}
	batches, total, err := h.service.ListBatches(r.Context(), filter)
	if err != nil {
		h.fail(w, "list sync batches", err)
		return
	}
	if batches == nil {
		batches = []BatchRecord{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[BatchRecord]{
		Data:       batches,
		Pagination: shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id de lote invalido")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.fail(w, "get sync batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) handleListCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := h.service.ListCursors(r.Context())
	if err != nil {
		h.fail(w, "list sync cursors", err)
		return
	}
	if cursors == nil {
		cursors = []Cursor{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cursors})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
