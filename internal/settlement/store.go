package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

// OrderRepository exposes order rows inside a transaction.
type OrderRepository interface {
	InsertOrder(ctx context.Context, o Order) (Order, error)
	InsertItem(ctx context.Context, it OrderItem) (OrderItem, error)
	UpdatePayment(ctx context.Context, orderID int64, total decimal.Decimal, walletDiscount *decimal.Decimal, status PaymentStatus) error
	// LockOrder returns ErrOrderNotFound when missing.
	LockOrder(ctx context.Context, orderID int64) (Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status, payment PaymentStatus) error
	ClearCart(ctx context.Context, userID int64) error
	// UnitPrices returns list prices keyed by product. Unpriced products are
	// absent from the map.
	UnitPrices(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error)
}

// Tx is every ledger bound to one database transaction. Each settlement
// touches only these handles; none of them open a transaction of their own.
type Tx interface {
	Orders() OrderRepository
	Inventory() inventory.TxRepository
	Suppliers() supplier.TxRepository
	Wallets() wallet.TxRepository
	Credits() credit.TxRepository
}

// Store opens settlement transactions and serves order reads.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrders(ctx context.Context, userID int64, limit int) ([]Order, error)
	SetPrice(ctx context.Context, productID int64, price decimal.Decimal) error
}

// Locker guards a user's checkout against double submission.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// IdempotencyPort records processed request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// RecalcEnqueuer schedules supplier balance recalculation after commit.
type RecalcEnqueuer interface {
	EnqueueSupplierRecalc(ctx context.Context, supplierID int64) error
}

// Observer receives settlement outcomes.
type Observer interface {
	ObserveSettlement(mode, outcome string)
	ObserveUnattributed(units int)
}
