package settlement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/platform/db"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
)

// Repository is the PostgreSQL Store. One pgx.Tx backs every ledger handle
// handed to a settlement.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type pgTx struct {
	orders    OrderRepository
	inventory inventory.TxRepository
	suppliers supplier.TxRepository
	wallets   wallet.TxRepository
	credits   credit.TxRepository
}

func newPgTx(q db.DBTX) *pgTx {
	return &pgTx{
		orders:    &orderRepository{q: q},
		inventory: inventory.NewTxRepository(q),
		suppliers: supplier.NewTxRepository(q),
		wallets:   wallet.NewTxRepository(q),
		credits:   credit.NewTxRepository(q),
	}
}

func (t *pgTx) Orders() OrderRepository           { return t.orders }
func (t *pgTx) Inventory() inventory.TxRepository { return t.inventory }
func (t *pgTx) Suppliers() supplier.TxRepository  { return t.suppliers }
func (t *pgTx) Wallets() wallet.TxRepository      { return t.wallets }
func (t *pgTx) Credits() credit.TxRepository      { return t.credits }

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	if r == nil {
		return errors.New("settlement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newPgTx(tx))
	})
}

// GetOrder reads an order and its items.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	repo := &orderRepository{q: r.pool}
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return Order{}, err
	}
	o.Items, err = repo.listItems(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns a user's latest orders without items.
func (r *Repository) ListOrders(ctx context.Context, userID int64, limit int) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetPrice upserts a product's list price.
func (r *Repository) SetPrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO product_prices (product_id, unit_price) VALUES ($1, $2)
ON CONFLICT (product_id) DO UPDATE SET unit_price = EXCLUDED.unit_price, updated_at = NOW()`, productID, price)
	return err
}

type orderRepository struct {
	q db.DBTX
}

const orderColumns = `id, public_id, user_id, warehouse_id, status, payment_mode, payment_status, subtotal, tax, total, wallet_discount, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status, mode, payment string
	var discount decimal.NullDecimal
	err := row.Scan(&o.ID, &o.PublicID, &o.UserID, &o.WarehouseID, &status, &mode, &payment,
		&o.Subtotal, &o.Tax, &o.Total, &discount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentMode = PaymentMode(mode)
	o.PaymentStatus = PaymentStatus(payment)
	if discount.Valid {
		d := discount.Decimal
		o.WalletDiscount = &d
	}
	return o, nil
}

func (r *orderRepository) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO orders
(public_id, user_id, warehouse_id, status, payment_mode, payment_status, subtotal, tax, total, wallet_discount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at, updated_at`,
		o.PublicID, o.UserID, o.WarehouseID, string(o.Status), string(o.PaymentMode), string(o.PaymentStatus),
		o.Subtotal, o.Tax, o.Total, nullDecimal(o.WalletDiscount)).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *orderRepository) InsertItem(ctx context.Context, it OrderItem) (OrderItem, error) {
	err := r.q.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal).Scan(&it.ID)
	return it, err
}

func (r *orderRepository) UpdatePayment(ctx context.Context, orderID int64, total decimal.Decimal, walletDiscount *decimal.Decimal, status PaymentStatus) error {
	_, err := r.q.Exec(ctx, `UPDATE orders SET total = $2, wallet_discount = $3, payment_status = $4, updated_at = NOW() WHERE id = $1`,
		orderID, total, nullDecimal(walletDiscount), string(status))
	return err
}

func (r *orderRepository) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.listItems(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, status Status, payment PaymentStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`,
		orderID, string(status), string(payment))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ClearCart(ctx context.Context, userID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (r *orderRepository) UnitPrices(ctx context.Context, productIDs []int64) (map[int64]decimal.Decimal, error) {
	rows, err := r.q.Query(ctx, `SELECT product_id, unit_price FROM product_prices WHERE product_id = ANY($1)`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]decimal.Decimal, len(productIDs))
	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		out[id] = price
	}
	return out, rows.Err()
}

func (r *orderRepository) listItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.q.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price, line_total
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}
