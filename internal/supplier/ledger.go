package supplier

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TxRepository exposes supplier ledger access inside a transaction.
type TxRepository interface {
	// LockOpenPositions returns the product's lots with quantity > 0, oldest
	// import first, holding row locks until the transaction ends.
	LockOpenPositions(ctx context.Context, productID int64) ([]Position, error)
	// GetPositionForUpdate returns ErrSupplierLotNotFound when the lot is missing.
	GetPositionForUpdate(ctx context.Context, supplierID, productID, warehouseID int64) (Position, error)
	UpsertPosition(ctx context.Context, p Position) error
	SetPositionQuantity(ctx context.Context, supplierID, productID, warehouseID int64, qty int) error
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, supplierID int64) ([]Transaction, error)
	ListPositions(ctx context.Context, supplierID int64) ([]Position, error)
	UpsertBalance(ctx context.Context, b Balance) error
}

// AllocateSale attributes qty sold units of productID to supplier lots,
// oldest lot first, at each lot's original average cost. Running out of lots
// is not an error: the remainder is reported as Unattributed and the order
// proceeds, since inventory was already gated by the stock ledger.
func AllocateSale(ctx context.Context, repo TxRepository, productID int64, qty int, orderID int64) (Allocation, error) {
	alloc := Allocation{ProductID: productID, OrderID: orderID, Requested: qty}
	if qty <= 0 {
		return alloc, ErrInvalidQuantity
	}
	lots, err := repo.LockOpenPositions(ctx, productID)
	if err != nil {
		return alloc, err
	}
	remaining := qty
	ref := SaleReference(orderID)
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}
		take := min(remaining, lot.Quantity)
		total := lot.AvgCost.Mul(decimal.NewFromInt(int64(take))).Round(2)
		if _, err := repo.InsertTransaction(ctx, Transaction{
			SupplierID:      lot.SupplierID,
			ProductID:       productID,
			WarehouseID:     lot.WarehouseID,
			Type:            TransactionSale,
			Quantity:        take,
			UnitPrice:       lot.AvgCost,
			TotalAmount:     total,
			ReferenceNumber: ref,
		}); err != nil {
			return alloc, err
		}
		if err := repo.SetPositionQuantity(ctx, lot.SupplierID, lot.ProductID, lot.WarehouseID, lot.Quantity-take); err != nil {
			return alloc, err
		}
		alloc.Lines = append(alloc.Lines, AllocationLine{
			SupplierID:  lot.SupplierID,
			WarehouseID: lot.WarehouseID,
			Quantity:    take,
			UnitCost:    lot.AvgCost,
			Total:       total,
		})
		alloc.Allocated += take
		remaining -= take
	}
	alloc.Unattributed = remaining
	return alloc, nil
}

// Fold derives a supplier balance from its ledger rows and current lots.
// Sales are tracked for reporting only; they do not change what is owed.
func Fold(supplierID int64, txs []Transaction, positions []Position) Balance {
	b := Balance{
		SupplierID:      supplierID,
		TotalImports:    decimal.Zero,
		TotalExports:    decimal.Zero,
		TotalSales:      decimal.Zero,
		TotalPayments:   decimal.Zero,
		TotalStockValue: decimal.Zero,
	}
	for _, tx := range txs {
		if tx.SupplierID != supplierID {
			continue
		}
		switch tx.Type {
		case TransactionImport:
			b.TotalImports = b.TotalImports.Add(tx.TotalAmount)
		case TransactionExport:
			b.TotalExports = b.TotalExports.Add(tx.TotalAmount)
		case TransactionSale:
			b.TotalSales = b.TotalSales.Add(tx.TotalAmount)
		case TransactionPayment:
			b.TotalPayments = b.TotalPayments.Add(tx.TotalAmount)
		}
	}
	b.Balance = b.TotalImports.Sub(b.TotalExports).Sub(b.TotalPayments)
	for _, p := range positions {
		if p.SupplierID != supplierID {
			continue
		}
		b.TotalStockValue = b.TotalStockValue.Add(p.Value())
	}
	b.TotalStockValue = b.TotalStockValue.Round(2)
	return b
}

// Recalculate rebuilds and upserts the supplier's balance row from its
// ledger. Running it any number of times yields the same row.
func Recalculate(ctx context.Context, repo TxRepository, supplierID int64, now time.Time) (Balance, error) {
	txs, err := repo.ListTransactions(ctx, supplierID)
	if err != nil {
		return Balance{}, err
	}
	positions, err := repo.ListPositions(ctx, supplierID)
	if err != nil {
		return Balance{}, err
	}
	b := Fold(supplierID, txs, positions)
	b.UpdatedAt = now
	if err := repo.UpsertBalance(ctx, b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// WeightedAverageCost merges n units at price into a lot of q units at avg.
func WeightedAverageCost(q int, avg decimal.Decimal, n int, price decimal.Decimal) decimal.Decimal {
	total := q + n
	if total <= 0 {
		return decimal.Zero
	}
	value := avg.Mul(decimal.NewFromInt(int64(q))).Add(price.Mul(decimal.NewFromInt(int64(n))))
	return value.DivRound(decimal.NewFromInt(int64(total)), 4)
}

func isLotMissing(err error) bool {
	return errors.Is(err, ErrSupplierLotNotFound)
}

func isBalanceMissing(err error) bool {
	return errors.Is(err, ErrBalanceNotFound)
}
