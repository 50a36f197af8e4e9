package wallet

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
)

// Handler wires HTTP endpoints for wallets.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs wallet handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers wallet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(shared.RequireUser).Get("/", h.handleOwnBalance)
	r.With(shared.RequireUser).Get("/transactions", h.handleOwnTransactions)
	r.With(shared.RequireCapability(shared.CapWalletDeposit)).Post("/{userID}/deposits", h.handleDeposit)
	r.With(shared.RequireCapability(shared.CapWalletDeposit)).Post("/{userID}/refunds", h.handleRefund)
	r.With(shared.RequireCapability(shared.CapWalletAudit)).Get("/{userID}/reconciliation", h.handleReconcile)
}

type balanceResponse struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	Display   string          `json:"display"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	OrderID   int64           `json:"order_id,omitempty"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type creditRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"max=64"`
}

func toBalanceResponse(w Wallet) balanceResponse {
	out := balanceResponse{UserID: w.UserID, Balance: w.Balance, Display: shared.FormatAmount(w.Balance)}
	if !w.UpdatedAt.IsZero() {
		at := w.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

func (h *Handler) handleOwnBalance(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	wallet, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBalanceResponse(wallet))
}

func (h *Handler) handleOwnTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	rows, err := h.service.Transactions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(rows))
	for _, t := range rows {
		out = append(out, transactionResponse{ID: t.ID, Type: t.Type, Amount: t.Amount, OrderID: t.OrderID, Reference: t.Reference, CreatedAt: t.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleCredit(w, r, h.service.Deposit)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	h.handleCredit(w, r, h.service.Refund)
}

func (h *Handler) handleCredit(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID int64, amount decimal.Decimal, ref string) (Wallet, error)) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var req creditRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	wallet, err := apply(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBalanceResponse(wallet))
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Reconcile(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUserRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("wallet request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	return id, true
}
