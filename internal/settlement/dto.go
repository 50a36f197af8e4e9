package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type itemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type settleRequest struct {
	WarehouseID int64         `json:"warehouse_id" validate:"required,gt=0"`
	PaymentMode string        `json:"payment_mode" validate:"required,oneof=wallet credit cash"`
	Items       []itemRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

type priceRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed processing shipped delivered cancelled"`
}

type itemResponse struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type allocationResponse struct {
	ProductID    int64           `json:"product_id"`
	Allocated    int             `json:"allocated"`
	Unattributed int             `json:"unattributed"`
	Cost         decimal.Decimal `json:"cost"`
}

type orderResponse struct {
	ID             int64                `json:"id"`
	PublicID       uuid.UUID            `json:"public_id"`
	UserID         int64                `json:"user_id"`
	WarehouseID    int64                `json:"warehouse_id"`
	Status         Status               `json:"status"`
	PaymentMode    PaymentMode          `json:"payment_mode"`
	PaymentStatus  PaymentStatus        `json:"payment_status"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	Tax            decimal.Decimal      `json:"tax"`
	Total          decimal.Decimal      `json:"total"`
	WalletDiscount *decimal.Decimal     `json:"wallet_discount,omitempty"`
	Items          []itemResponse       `json:"items,omitempty"`
	Allocations    []allocationResponse `json:"allocations,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func (r settleRequest) toRequest(userID int64, key string) Request {
	items := make([]Line, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return Request{
		UserID:         userID,
		WarehouseID:    r.WarehouseID,
		Items:          items,
		PaymentMode:    PaymentMode(r.PaymentMode),
		IdempotencyKey: key,
	}
}

func toOrderResponse(o Order) orderResponse {
	out := orderResponse{
		ID:             o.ID,
		PublicID:       o.PublicID,
		UserID:         o.UserID,
		WarehouseID:    o.WarehouseID,
		Status:         o.Status,
		PaymentMode:    o.PaymentMode,
		PaymentStatus:  o.PaymentStatus,
		Subtotal:       o.Subtotal,
		Tax:            o.Tax,
		Total:          o.Total,
		WalletDiscount: o.WalletDiscount,
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, itemResponse{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, LineTotal: it.LineTotal})
	}
	return out
}

func toResultResponse(r Result) orderResponse {
	out := toOrderResponse(r.Order)
	for _, a := range r.Allocations {
		out.Allocations = append(out.Allocations, allocationResponse{
			ProductID:    a.ProductID,
			Allocated:    a.Allocated,
			Unattributed: a.Unattributed,
			Cost:         a.Cost(),
		})
	}
	return out
}
