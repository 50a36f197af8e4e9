package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/supplier"
)

// PaymentMode selects how an order is paid.
type PaymentMode string

const (
	PaymentWallet PaymentMode = "wallet"
	PaymentCredit PaymentMode = "credit"
	PaymentCash   PaymentMode = "cash"
)

// ParsePaymentMode validates a client-supplied mode.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch m := PaymentMode(s); m {
	case PaymentWallet, PaymentCredit, PaymentCash:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMode, s)
}

// PaymentStatus tracks whether money has been collected.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentOnCredit PaymentStatus = "on_credit"
	PaymentRefunded PaymentStatus = "refunded"
)

// Status is the fulfilment lifecycle of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Stage is a step of the settlement transaction.
type Stage int

const (
	StageDraft Stage = iota
	StageItemsInserted
	StageStockReserved
	StageCostAllocated
	StagePaymentSettled
	StageCommitted
	StageRolledBack
)

func (s Stage) String() string {
	switch s {
	case StageDraft:
		return "draft"
	case StageItemsInserted:
		return "items_inserted"
	case StageStockReserved:
		return "stock_reserved"
	case StageCostAllocated:
		return "cost_allocated"
	case StagePaymentSettled:
		return "payment_settled"
	case StageCommitted:
		return "committed"
	case StageRolledBack:
		return "rolled_back"
	}
	return "unknown"
}

// StageError records the step at which a settlement rolled back.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("settlement: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Item is one cart line submitted for settlement.
type Item struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Line is a requested product and quantity. Prices come from the price list
// at settlement time, never from the caller.
type Line struct {
	ProductID int64
	Quantity  int
}

// Request is the input of SettleOrder.
type Request struct {
	UserID         int64
	WarehouseID    int64
	Items          []Line
	PaymentMode    PaymentMode
	IdempotencyKey string
}

// Order is a settled customer order.
type Order struct {
	ID             int64
	PublicID       uuid.UUID
	UserID         int64
	WarehouseID    int64
	Status         Status
	PaymentMode    PaymentMode
	PaymentStatus  PaymentStatus
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	WalletDiscount *decimal.Decimal
	Items          []OrderItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is a persisted order line.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Result is a committed order plus the cost attribution of its lines.
type Result struct {
	Order       Order
	Allocations []supplier.Allocation
}

// SupplierIDs lists the suppliers charged across all lines.
func (r Result) SupplierIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, a := range r.Allocations {
		for _, id := range a.SupplierIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Unattributed sums units sold without a supplier lot.
func (r Result) Unattributed() int {
	n := 0
	for _, a := range r.Allocations {
		n += a.Unattributed
	}
	return n
}

// Totals derives subtotal, tax and total from the lines.
func Totals(items []Item, taxRate decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(lineTotal(it))
	}
	tax = subtotal.Mul(taxRate).Round(2)
	return subtotal, tax, subtotal.Add(tax)
}

func lineTotal(it Item) decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
}

var (
	// ErrEmptyOrder indicates a settlement without items.
	ErrEmptyOrder = errors.New("settlement: order has no items")
	// ErrInvalidItem indicates a line with a missing product or a non-positive quantity.
	ErrInvalidItem = errors.New("settlement: invalid order item")
	// ErrProductNotPriced indicates a product without a positive list price.
	ErrProductNotPriced = errors.New("settlement: product has no price")
	// ErrUnknownPaymentMode indicates an unsupported payment mode.
	ErrUnknownPaymentMode = errors.New("settlement: unknown payment mode")
	// ErrWarehouseRequired indicates a request without warehouse.
	ErrWarehouseRequired = errors.New("settlement: warehouse required")
	// ErrOrderNotFound indicates a missing order.
	ErrOrderNotFound = errors.New("settlement: order not found")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("settlement: invalid status transition")
	// ErrDuplicateRequest indicates a replayed idempotency key.
	ErrDuplicateRequest = errors.New("settlement: duplicate request")
)
