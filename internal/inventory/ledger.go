package inventory

import "context"

// TxRepository exposes the stock mutations available inside a transaction.
type TxRepository interface {
	// DecrementStock applies stock -= qty only when stock >= qty and
	// reports whether a row was affected.
	DecrementStock(ctx context.Context, productID, warehouseID int64, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID, warehouseID int64, qty int) error
	GetStock(ctx context.Context, productID, warehouseID int64) (Stock, error)
}

// Decrement reserves qty units. It never reads then writes: the conditional
// update is the only oversell guard, so concurrent orders for the same row
// serialise on the row lock and the loser sees zero affected rows.
func Decrement(ctx context.Context, repo TxRepository, productID, warehouseID int64, qty int) error {
	if productID == 0 || warehouseID == 0 {
		return ErrLocationRequired
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	applied, err := repo.DecrementStock(ctx, productID, warehouseID, qty)
	if err != nil {
		return err
	}
	if !applied {
		return &InsufficientStockError{ProductID: productID, WarehouseID: warehouseID, Requested: qty}
	}
	return nil
}

// Restock adds qty units, creating the row when missing.
func Restock(ctx context.Context, repo TxRepository, productID, warehouseID int64, qty int) error {
	if productID == 0 || warehouseID == 0 {
		return ErrLocationRequired
	}
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return repo.IncrementStock(ctx, productID, warehouseID, qty)
}
