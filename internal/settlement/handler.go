package settlement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

// IdempotencyHeader carries the client's replay key for checkout.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs settlement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(shared.RequireUser)
	r.With(shared.RequireCapability(shared.CapPlaceOrder)).Post("/", h.handleSettle)
	r.Get("/", h.handleList)
	r.Get("/{orderID}", h.handleGet)
	r.Post("/{orderID}/cancel", h.handleCancel)
	r.With(shared.RequireCapability(shared.CapUpdateOrderStatus)).Patch("/{orderID}/status", h.handleStatus)
	r.With(shared.RequireCapability(shared.CapPriceList)).Put("/prices/{productID}", h.handlePrice)
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	var req settleRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	res, err := h.service.SettleOrder(r.Context(), req.toRequest(userID, r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResultResponse(res))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.service.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadVisible(w, r, shared.CapUpdateOrderStatus)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadVisible(w, r, shared.CapCancelOrder)
	if !ok {
		return
	}
	if !shared.RoleFromContext(r.Context()).Can(shared.CapCancelOrder) && o.Status != StatusPending {
		httpx.Problem(w, http.StatusConflict, "Conflict", "only pending orders can be cancelled by the customer")
		return
	}
	out, err := h.service.Cancel(r.Context(), o.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(out))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	out, err := h.service.UpdateStatus(r.Context(), orderID, Status(req.Status))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(out))
}

func (h *Handler) handlePrice(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var req priceRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	if err := h.service.SetPrice(r.Context(), productID, req.UnitPrice); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadVisible fetches the order when the caller owns it or holds staff.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request, staff shared.Capability) (Order, bool) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return Order{}, false
	}
	o, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return Order{}, false
	}
	userID, _ := shared.UserIDFromContext(r.Context())
	if o.UserID != userID && !shared.RoleFromContext(r.Context()).Can(staff) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrOrderNotFound.Error())
		return Order{}, false
	}
	return o, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if credit.RespondRejection(w, err) {
		return
	}
	var stockErr *inventory.InsufficientStockError
	var balanceErr *wallet.InsufficientBalanceError
	switch {
	case errors.As(err, &stockErr):
		httpx.ProblemWithCode(w, http.StatusConflict, "Insufficient Stock", "insufficient_stock",
			"product "+strconv.FormatInt(stockErr.ProductID, 10)+" does not have "+strconv.Itoa(stockErr.Requested)+" units in stock",
			map[string]any{"product_id": stockErr.ProductID, "warehouse_id": stockErr.WarehouseID, "requested": stockErr.Requested})
	case errors.As(err, &balanceErr):
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "Insufficient Wallet Balance", "insufficient_wallet_balance",
			"wallet holds "+shared.FormatAmount(balanceErr.Available)+", order needs "+shared.FormatAmount(balanceErr.Required),
			map[string]any{"required": balanceErr.Required, "available": balanceErr.Available})
	case errors.Is(err, shared.ErrCheckoutInProgress):
		httpx.ProblemWithCode(w, http.StatusConflict, "Conflict", "checkout_in_progress", err.Error(), nil)
	case errors.Is(err, ErrDuplicateRequest):
		httpx.ProblemWithCode(w, http.StatusConflict, "Conflict", "duplicate_request", err.Error(), nil)
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrProductNotPriced):
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "Product Not Priced", "product_not_priced", err.Error(), nil)
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidItem), errors.Is(err, ErrUnknownPaymentMode),
		errors.Is(err, ErrWarehouseRequired), errors.Is(err, shared.ErrMissingUser),
		errors.Is(err, wallet.ErrInvalidAmount), errors.Is(err, credit.ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("order request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return 0, false
	}
	return id, true
}
