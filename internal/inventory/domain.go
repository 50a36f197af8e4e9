package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Stock is the on-hand quantity of one product in one warehouse.
type Stock struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int
	UpdatedAt   time.Time
}

// ErrInsufficientStock is matched by every *InsufficientStockError.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrLocationRequired indicates a missing product or warehouse.
var ErrLocationRequired = errors.New("inventory: warehouse and product required")

// InsufficientStockError reports which product could not be reserved.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d in warehouse %d (requested %d)", e.ProductID, e.WarehouseID, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
