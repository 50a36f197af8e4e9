package supplier

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supplier ledger entries.
type TransactionType string

const (
	// TransactionImport records goods received from the supplier.
	TransactionImport TransactionType = "import"
	// TransactionExport records goods returned to the supplier.
	TransactionExport TransactionType = "export"
	// TransactionSale attributes sold units to the supplier at original cost.
	TransactionSale TransactionType = "sale"
	// TransactionPayment records money paid to the supplier.
	TransactionPayment TransactionType = "payment"
)

// Position is a supplier lot: units the supplier still owns in a warehouse at
// a weighted average cost.
type Position struct {
	SupplierID     int64
	ProductID      int64
	WarehouseID    int64
	Quantity       int
	AvgCost        decimal.Decimal
	LastImportDate time.Time
}

// Value is Quantity × AvgCost.
func (p Position) Value() decimal.Decimal {
	return decimal.NewFromInt(int64(p.Quantity)).Mul(p.AvgCost)
}

// Transaction is an append-only supplier ledger row.
type Transaction struct {
	ID              int64
	SupplierID      int64
	ProductID       int64
	WarehouseID     int64
	Type            TransactionType
	Quantity        int
	UnitPrice       decimal.Decimal
	TotalAmount     decimal.Decimal
	ReferenceNumber string
	Notes           string
	CreatedAt       time.Time
}

// Balance is the materialised fold of a supplier's ledger.
type Balance struct {
	SupplierID      int64           `json:"supplier_id"`
	TotalImports    decimal.Decimal `json:"total_imports"`
	TotalExports    decimal.Decimal `json:"total_exports"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalPayments   decimal.Decimal `json:"total_payments"`
	Balance         decimal.Decimal `json:"balance"`
	TotalStockValue decimal.Decimal `json:"total_stock_value"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Equal compares every amount, ignoring UpdatedAt.
func (b Balance) Equal(o Balance) bool {
	return b.SupplierID == o.SupplierID &&
		b.TotalImports.Equal(o.TotalImports) &&
		b.TotalExports.Equal(o.TotalExports) &&
		b.TotalSales.Equal(o.TotalSales) &&
		b.TotalPayments.Equal(o.TotalPayments) &&
		b.Balance.Equal(o.Balance) &&
		b.TotalStockValue.Equal(o.TotalStockValue)
}

// AllocationLine is the share of a sale attributed to one lot.
type AllocationLine struct {
	SupplierID  int64
	WarehouseID int64
	Quantity    int
	UnitCost    decimal.Decimal
	Total       decimal.Decimal
}

// Allocation is the outcome of attributing one sold line to supplier lots.
type Allocation struct {
	ProductID    int64
	OrderID      int64
	Requested    int
	Allocated    int
	Unattributed int
	Lines        []AllocationLine
}

// Cost sums the attributed cost of goods sold.
func (a Allocation) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.Lines {
		total = total.Add(l.Total)
	}
	return total
}

// SupplierIDs lists the distinct suppliers charged by the allocation.
func (a Allocation) SupplierIDs() []int64 {
	seen := make(map[int64]bool, len(a.Lines))
	var ids []int64
	for _, l := range a.Lines {
		if !seen[l.SupplierID] {
			seen[l.SupplierID] = true
			ids = append(ids, l.SupplierID)
		}
	}
	return ids
}

// Shortfall returns an error wrapping ErrSupplierLotNotFound when part of the
// sale could not be attributed, nil otherwise. It is informational only.
func (a Allocation) Shortfall() error {
	if a.Unattributed <= 0 {
		return nil
	}
	return fmt.Errorf("%w: product %d order %d: %d of %d units unattributed",
		ErrSupplierLotNotFound, a.ProductID, a.OrderID, a.Unattributed, a.Requested)
}

// ImportInput records goods received from a supplier.
type ImportInput struct {
	SupplierID      int64
	ProductID       int64
	WarehouseID     int64
	Quantity        int
	UnitPrice       decimal.Decimal
	ReferenceNumber string
	Notes           string
	ActorID         int64
}

// ExportInput records goods returned to a supplier. A zero UnitPrice values
// the return at the lot's average cost.
type ExportInput struct {
	SupplierID      int64
	ProductID       int64
	WarehouseID     int64
	Quantity        int
	UnitPrice       decimal.Decimal
	ReferenceNumber string
	Notes           string
	ActorID         int64
}

// PaymentInput records money paid to a supplier.
type PaymentInput struct {
	SupplierID      int64
	Amount          decimal.Decimal
	ReferenceNumber string
	Notes           string
	ActorID         int64
}

var (
	// ErrSupplierLotNotFound means no lot holds the product. Non-fatal during sale allocation.
	ErrSupplierLotNotFound = errors.New("supplier: lot not found")
	// ErrInsufficientLotQuantity means the lot holds fewer units than an export requests.
	ErrInsufficientLotQuantity = errors.New("supplier: insufficient lot quantity")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("supplier: quantity must be positive")
	// ErrInvalidAmount indicates a non-positive or negative money amount.
	ErrInvalidAmount = errors.New("supplier: amount must be positive")
	// ErrBalanceNotFound means the supplier has no materialised balance yet.
	ErrBalanceNotFound = errors.New("supplier: balance not found")
	// ErrSupplierRequired indicates missing supplier/product/warehouse ids.
	ErrSupplierRequired = errors.New("supplier: supplier, product and warehouse required")
)

// SaleReference is the reference number stamped on sale rows.
func SaleReference(orderID int64) string {
	return fmt.Sprintf("ORD-%d", orderID)
}
