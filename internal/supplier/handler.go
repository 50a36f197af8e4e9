package supplier

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
)

// Handler wires HTTP endpoints for the supplier ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs supplier handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireCapability(shared.CapSupplierLedger))
		r.Get("/{supplierID}/balance", h.handleBalance)
		r.Get("/{supplierID}/transactions", h.handleTransactions)
		r.Get("/{supplierID}/positions", h.handlePositions)
		r.Post("/{supplierID}/imports", h.handleImport)
		r.Post("/{supplierID}/exports", h.handleExport)
		r.Post("/{supplierID}/payments", h.handlePayment)
	})
	r.With(shared.RequireCapability(shared.CapSupplierReconcile)).
		Post("/{supplierID}/recalculate", h.handleRecalculate)
}

type movementRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID     int64           `json:"warehouse_id" validate:"required,gt=0"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	ReferenceNumber string          `json:"reference_number" validate:"max=64"`
	Notes           string          `json:"notes" validate:"max=500"`
}

type paymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	ReferenceNumber string          `json:"reference_number" validate:"max=64"`
	Notes           string          `json:"notes" validate:"max=500"`
}

type transactionResponse struct {
	ID              int64           `json:"id"`
	SupplierID      int64           `json:"supplier_id"`
	ProductID       int64           `json:"product_id,omitempty"`
	WarehouseID     int64           `json:"warehouse_id,omitempty"`
	Type            TransactionType `json:"type"`
	Quantity        int             `json:"quantity,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type positionResponse struct {
	ProductID      int64           `json:"product_id"`
	WarehouseID    int64           `json:"warehouse_id"`
	Quantity       int             `json:"quantity"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	Value          decimal.Decimal `json:"value"`
	LastImportDate time.Time       `json:"last_import_date"`
}

func toTransactionResponse(t Transaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		SupplierID:      t.SupplierID,
		ProductID:       t.ProductID,
		WarehouseID:     t.WarehouseID,
		Type:            t.Type,
		Quantity:        t.Quantity,
		UnitPrice:       t.UnitPrice,
		TotalAmount:     t.TotalAmount,
		ReferenceNumber: t.ReferenceNumber,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
	}
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Balance(r.Context(), supplierID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Transactions(r.Context(), supplierID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	lots, err := h.service.Positions(r.Context(), supplierID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]positionResponse, 0, len(lots))
	for _, p := range lots {
		out = append(out, positionResponse{
			ProductID:      p.ProductID,
			WarehouseID:    p.WarehouseID,
			Quantity:       p.Quantity,
			AvgCost:        p.AvgCost,
			Value:          p.Value().Round(2),
			LastImportDate: p.LastImportDate,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	actorID, _ := shared.UserIDFromContext(r.Context())
	row, err := h.service.RecordImport(r.Context(), ImportInput{
		SupplierID:      supplierID,
		ProductID:       req.ProductID,
		WarehouseID:     req.WarehouseID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ActorID:         actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(row))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	actorID, _ := shared.UserIDFromContext(r.Context())
	row, err := h.service.RecordExport(r.Context(), ExportInput{
		SupplierID:      supplierID,
		ProductID:       req.ProductID,
		WarehouseID:     req.WarehouseID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ActorID:         actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(row))
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	actorID, _ := shared.UserIDFromContext(r.Context())
	row, err := h.service.RecordPayment(r.Context(), PaymentInput{
		SupplierID:      supplierID,
		Amount:          req.Amount,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		ActorID:         actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(row))
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	supplierID, ok := parseSupplierID(w, r)
	if !ok {
		return
	}
	b, err := h.service.Recalculate(r.Context(), supplierID, "manual")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSupplierRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrSupplierLotNotFound), errors.Is(err, ErrBalanceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientLotQuantity):
		httpx.ProblemWithCode(w, http.StatusConflict, "Conflict", "insufficient_lot_quantity", err.Error(), nil)
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.ProblemWithCode(w, http.StatusConflict, "Conflict", "insufficient_stock", err.Error(), nil)
	default:
		h.logger.Error("supplier request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseSupplierID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "supplierID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid supplier id")
		return 0, false
	}
	return id, true
}
