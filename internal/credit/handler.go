package credit

import (
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

// Handler wires HTTP endpoints for trade credit.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs credit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(shared.RequireUser)
		r.Get("/", h.handleOwnSummary)
		r.Get("/transactions", h.handleOwnTransactions)
		r.Post("/eligibility", h.handleEligibility)
	})
	r.With(shared.RequireCapability(shared.CapCreditPayment)).Post("/{userID}/payments", h.handlePayment)
	r.With(shared.RequireCapability(shared.CapCreditAdmin)).Get("/{userID}", h.handleSummary)
	r.With(shared.RequireCapability(shared.CapCreditAdmin)).Put("/{userID}/eligibility", h.handleSetEligibility)
}

type summaryResponse struct {
	UserID           int64           `json:"user_id"`
	LoyaltyLevel     Level           `json:"loyalty_level"`
	TotalPurchases   decimal.Decimal `json:"total_purchases"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	Available        decimal.Decimal `json:"available"`
	AvailableDisplay string          `json:"available_display"`
	CreditPeriodDays int             `json:"credit_period_days"`
	IsEligible       bool            `json:"is_eligible"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	PendingCount     int             `json:"pending_count"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	OverdueCount     int             `json:"overdue_count"`
	NextDueDate      *time.Time      `json:"next_due_date,omitempty"`
}

type transactionResponse struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id,omitempty"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes" validate:"max=500"`
}

type eligibilityRequest struct {
	Eligible *bool `json:"eligible" validate:"required"`
}

func toSummaryResponse(s Summary) summaryResponse {
	a := s.Account
	return summaryResponse{
		UserID:           a.UserID,
		LoyaltyLevel:     a.LoyaltyLevel,
		TotalPurchases:   a.TotalPurchases,
		CreditLimit:      a.CreditLimit,
		CurrentBalance:   a.CurrentBalance,
		Available:        a.Available(),
		AvailableDisplay: shared.FormatAmount(a.Available()),
		CreditPeriodDays: a.CreditPeriodDays,
		IsEligible:       a.IsEligible,
		PendingAmount:    s.PendingAmount,
		PendingCount:     s.PendingCount,
		OverdueAmount:    s.OverdueAmount,
		OverdueCount:     s.OverdueCount,
		NextDueDate:      s.NextDueDate,
	}
}

func (h *Handler) handleOwnSummary(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	h.writeSummary(w, r, userID)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	h.writeSummary(w, r, userID)
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, userID int64) {
	s, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSummaryResponse(s))
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
		out = append(out, transactionResponse{
			ID:           t.ID,
			OrderID:      t.OrderID,
			Type:         t.Type,
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			DueDate:      t.DueDate,
			Status:       t.Status,
			Notes:        t.Notes,
			CreatedAt:    t.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.UserIDFromContext(r.Context())
	var req amountRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	out, err := h.service.CheckEligibility(r.Context(), userID, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	res, err := h.service.CreatePayment(r.Context(), userID, req.Amount, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"payment_id":  res.Payment.ID,
		"balance":     res.Balance,
		"settled_ids": res.SettledIDs,
		"excess":      res.Excess,
	})
}

func (h *Handler) handleSetEligibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var req eligibilityRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	acct, err := h.service.SetEligibility(r.Context(), userID, *req.Eligible)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSummaryResponse(Summary{Account: acct}))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if RespondRejection(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUserRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNothingOwed):
		httpx.ProblemWithCode(w, http.StatusConflict, "Nothing Owed", "nothing_owed", "the account has no outstanding balance", nil)
	default:
		h.logger.Error("credit request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// RespondRejection writes a 422 problem for credit gate rejections and
// reports whether err was one.
func RespondRejection(w http.ResponseWriter, err error) bool {
	var limitErr *CreditLimitExceededError
	switch {
	case errors.As(err, &limitErr):
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "Credit Limit Exceeded", ReasonLimitExceeded,
			"available credit is "+shared.FormatAmount(limitErr.Available)+", short by "+shared.FormatAmount(limitErr.Shortfall),
			map[string]any{"available": limitErr.Available, "shortfall": limitErr.Shortfall})
	case errors.Is(err, ErrCreditOverdue):
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "Credit Overdue", ReasonOverdue,
			"settle overdue purchases before buying on credit", nil)
	case errors.Is(err, ErrCreditNotEligible):
		httpx.ProblemWithCode(w, http.StatusUnprocessableEntity, "Credit Not Available", ReasonNotEligible,
			"credit purchases are disabled for this account", nil)
	default:
		return false
	}
	return true
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	return id, true
}
