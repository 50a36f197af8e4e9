package segments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/platform/httpx"
	"github.com/wholesale-hub/settlement/internal/shared"
)

// Handler exposes segment previews to managers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs segments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers segment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(shared.RequireCapability(shared.CapCreditAdmin)).Post("/preview", h.handlePreview)
}

type previewRequest struct {
	Criteria json.RawMessage `json:"criteria" validate:"required"`
}

type memberResponse struct {
	UserID         int64           `json:"user_id"`
	OrderCount     int             `json:"order_count"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	CityID         int64           `json:"city_id"`
	LoyaltyTier    credit.Level    `json:"loyalty_tier"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !h.validator.Decode(w, r, &req) {
		return
	}
	members, err := h.service.Preview(r.Context(), req.Criteria)
	if err != nil {
		if errors.Is(err, ErrInvalidCriteria) {
			httpx.ProblemWithCode(w, http.StatusBadRequest, "Validation Failed", "invalid_criteria", err.Error(), nil)
			return
		}
		h.logger.Error("segment preview failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, p := range members {
		out = append(out, memberResponse{
			UserID:         p.UserID,
			OrderCount:     p.OrderCount,
			TotalPurchases: p.TotalPurchases,
			CityID:         p.CityID,
			LoyaltyTier:    p.LoyaltyTier,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"count": len(out), "members": out})
}
