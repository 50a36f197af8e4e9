package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{productID}/warehouses/{warehouseID}", h.handleStock)
	r.With(shared.RequireCapability(shared.CapSupplierLedger)).
		Post("/{productID}/warehouses/{warehouseID}/restock", h.handleRestock)
}

type stockResponse struct {
	ProductID   int64 `json:"product_id"`
	WarehouseID int64 `json:"warehouse_id"`
	Stock       int   `json:"stock"`
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := parseLocation(w, r)
	if !ok {
		return
	}
	st, err := h.service.Stock(r.Context(), productID, warehouseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ProductID: productID, WarehouseID: warehouseID, Stock: st.Quantity})
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := parseLocation(w, r)
	if !ok {
		return
	}
	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	st, err := h.service.Restock(r.Context(), productID, warehouseID, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ProductID: productID, WarehouseID: warehouseID, Stock: st.Quantity})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrLocationRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseLocation(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return 0, 0, false
	}
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return 0, 0, false
	}
	return productID, warehouseID, true
}
